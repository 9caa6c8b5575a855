package salesforce

import "strings"

var soqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Quote возвращает строковый литерал SOQL в одинарных кавычках.
func Quote(value string) string {
	return "'" + soqlEscaper.Replace(value) + "'"
}

// InList возвращает список литералов для IN: ('a','b').
// Пустой список не является корректным SOQL; вызывающий код проверяет это сам.
func InList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return "(" + strings.Join(quoted, ",") + ")"
}
