package db

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern turns user input into a substring pattern for
// `LIKE ? ESCAPE '\'`, escaping wildcard characters.
func LikePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
