package main

import (
	"regexp"
	"strings"

	"github.com/spf13/cobra"
)

var negativeInt = regexp.MustCompile(`^-[0-9][0-9_]*$`)

// normalizeArgs moves positional arguments behind "--" when one of them is a
// negative integer, so pflag does not read "-1" as a shorthand flag. The
// subcommand name stays in front so cobra still dispatches on it.
func normalizeArgs(root *cobra.Command, args []string) []string {
	var sub string
	var flags, positional []string
	negative := false
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			positional = append(positional, args[i+1:]...)
			i = len(args)
		case negativeInt.MatchString(a):
			negative = true
			positional = append(positional, a)
		case strings.HasPrefix(a, "-") && len(a) > 1:
			flags = append(flags, a)
			if takesValue(root, a) && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		case sub == "" && len(positional) == 0 && isSubcommand(root, a):
			sub = a
		default:
			positional = append(positional, a)
		}
	}
	if !negative {
		return args
	}
	out := make([]string, 0, len(args)+1)
	if sub != "" {
		out = append(out, sub)
	}
	out = append(out, flags...)
	out = append(out, "--")
	return append(out, positional...)
}

// takesValue reports whether a "--name" flag consumes the next argument.
func takesValue(root *cobra.Command, a string) bool {
	if !strings.HasPrefix(a, "--") || strings.Contains(a, "=") {
		return false
	}
	name := strings.TrimPrefix(a, "--")
	f := root.PersistentFlags().Lookup(name)
	for _, c := range root.Commands() {
		if f != nil {
			break
		}
		f = c.Flags().Lookup(name)
	}
	return f != nil && f.NoOptDefVal == ""
}

func isSubcommand(root *cobra.Command, a string) bool {
	for _, c := range root.Commands() {
		if c.Name() == a || c.HasAlias(a) {
			return true
		}
	}
	return false
}
