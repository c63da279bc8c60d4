package loader

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// keyAliases maps alternative spellings seen in older policies onto the
// canonical field names.
var keyAliases = map[string]string{
	"errormessage":  "error",
	"error_message": "error",
	"file_pattern":  "filepattern",
	"exit_critical": "exitcritical",
	"exit_warning":  "exitwarning",
	"exit_clean":    "exitclean",
}

// lowerKeys rewrites every mapping key under n to lower case so that policy
// identifiers are case-insensitive. Values are left untouched.
func lowerKeys(n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			lowerKeys(c)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind == yaml.ScalarNode {
				key := strings.ToLower(strings.TrimSpace(k.Value))
				if alias, ok := keyAliases[key]; ok {
					key = alias
				}
				k.Value = key
			}
			lowerKeys(n.Content[i+1])
		}
	case yaml.AliasNode:
		if n.Alias != nil {
			lowerKeys(n.Alias)
		}
	}
}
