package main

// splitFlagsAndPositional partitions args into flag tokens (recognized by
// name, consuming a following value unless the flag is boolean) and
// everything else, so a flag.FlagSet can parse flags regardless of
// whether the user wrote them before or after positional arguments —
// e.g. both `ingest --project-name X path` and `ingest path --project-name X`
// per spec §6's CLI grammar.
func splitFlagsAndPositional(args []string, boolFlags map[string]bool, valueFlags map[string]bool) (flags, positional []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		name := a
		if len(a) > 2 && a[0] == '-' && a[1] == '-' {
			name = a[2:]
			if eq := indexByte(name, '='); eq >= 0 {
				name = name[:eq]
			}
		}
		switch {
		case boolFlags[name]:
			flags = append(flags, a)
		case valueFlags[name]:
			flags = append(flags, a)
			if indexByte(a, '=') < 0 && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		default:
			positional = append(positional, a)
		}
	}
	return flags, positional
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
