package search

import "fmt"

// QueriesFor returns the query variants run for one organization. The
// order is fixed; it feeds directly into merged result ordering.
func QueriesFor(name string) []string {
	return []string{
		fmt.Sprintf("%s organization information", name),
		fmt.Sprintf("%s leadership team executives", name),
		fmt.Sprintf("%s recent news", name),
	}
}

// NewsQueryFor returns the query used for the news-only providers.
func NewsQueryFor(name string) string {
	return name
}
