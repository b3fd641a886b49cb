// Command selectors prints the revert selectors the error decoder knows,
// for matching raw revert data by eye.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"oft-bridge.backend/internal/usecases"
)

func main() {
	filter := ""
	if len(os.Args) > 1 {
		filter = strings.ToLower(os.Args[1])
	}
	for _, line := range selectorLines(usecases.KnownErrorSelectors(), filter) {
		fmt.Println(line)
	}
}

// selectorLines renders "signature: selector", sorted by signature. A
// non-empty filter keeps lines whose selector or signature contains it.
func selectorLines(selectors map[string]string, filter string) []string {
	out := make([]string, 0, len(selectors))
	for sel, sig := range selectors {
		if filter != "" && !strings.Contains(strings.ToLower(sig), filter) && !strings.Contains(sel, filter) {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", sig, sel))
	}
	sort.Strings(out)
	return out
}
