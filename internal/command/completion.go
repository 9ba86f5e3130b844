// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/bomprice/internal/meta"
)

const bashCompletionScript = `# bash completion for bomprice
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_bomprice()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "lookup bom libpatch cache completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local out="--columns -a --color -c --filter -f --output -o --sort -s --titles -t"
    local cache="--cache-backend --cache-file --redis-url --ttl"
    local lookup="--currency --rate --rate-url --max-retries --throttle"
    local common="--tldr --examples"

    case "$cmd" in
        lookup)
            local opts="$out $cache $lookup $common"
            ;;
        bom)
            local opts="$cache $lookup $common"
            if [[ "$cur" != -* ]]; then
                COMPREPLY=( $(compgen -f -- "$cur") )
                return 0
            fi
            ;;
        libpatch)
            local opts="$cache $lookup $common"
            if [[ "$cur" != -* ]]; then
                COMPREPLY=( $(compgen -f -X '!*.lib' -- "$cur") )
                return 0
            fi
            ;;
        cache)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "list prune clear" -- "$cur") )
                return 0
            fi
            local opts="$out $cache --older-than $common"
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    if [[ "$prev" == "--output" || "$prev" == "-o" ]]; then
        COMPREPLY=( $(compgen -W "text json yaml" -- "$cur") )
        return 0
    fi
    if [[ "$prev" == "--cache-backend" ]]; then
        COMPREPLY=( $(compgen -W "file redis" -- "$cur") )
        return 0
    fi

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _bomprice bomprice
`

const zshCompletionScript = `#compdef bomprice

_bomprice() {
  local -a cmds
  cmds=(
    'lookup:price LCSC part numbers'
    'bom:priced BOM from a KiCad netlist'
    'libpatch:update Price fields in a KiCad symbol library'
    'cache:inspect and maintain the part cache'
    'completion:generate shell completion script'
  )

  local -a out cache lookup
  out=(
  '(-a --columns)'{-a,--columns}'[columns to show]:columns'
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-o --output)'{-o,--output}'[output format]:format:(text json yaml)'
  '(-s --sort)'{-s,--sort}'[sort columns]:columns'
  '(-t --titles)'{-t,--titles}'[show titles]'
  )
  cache=(
  '--cache-backend[cache backend]:backend:(file redis)'
  '--cache-file[cache file]:file:_files'
  '--redis-url[redis URL]:url'
  '--ttl[quote freshness]:duration'
  '--tldr[show tldr page]'
  '--examples[show usage examples]'
  )
  lookup=(
  '--currency[report currency]:currency'
  '--rate[fixed exchange rate]:rate'
  '--rate-url[exchange rate service]:url'
  '--max-retries[rate limit retries]:count'
  '--throttle[pause between requests]:duration'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'bomprice commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    lookup)
      _arguments -C $out $cache $lookup '*:part number'
      ;;
    bom)
      _arguments -C $cache $lookup '1:netlist:_files -g "*.xml"' '2:output:_files'
      ;;
    libpatch)
      _arguments -C $cache $lookup '1:library:_files -g "*.lib"'
      ;;
    cache)
      _arguments -C '1:action:(list prune clear)' $out $cache '--older-than[maximum age]:duration'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _bomprice bomprice
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer

	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		// Try to detect from SHELL or print help
		sh := os.Getenv("SHELL")
		if strings.HasSuffix(sh, "zsh") {
			fmt.Fprint(w, zshCompletionScript)
		} else if strings.HasSuffix(sh, "bash") {
			fmt.Fprint(w, bashCompletionScript)
		} else {
			fmt.Fprintln(os.Stderr, "usage: bomprice completion [bash|zsh]")
			return nil
		}
	}
	return nil
}

func CompletionCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "bomprice completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
