package view

import (
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
)

// highlighted keeps the last highlighted source; the code popup redraws it
// on every frame.
var highlighted struct {
	sync.Mutex
	source string
	out    string
}

func highlightPython(source string) string {
	highlighted.Lock()
	defer highlighted.Unlock()
	if highlighted.source == source && highlighted.out != "" {
		return highlighted.out
	}
	var b strings.Builder
	if err := quick.Highlight(&b, source, "python", "terminal256", "monokai"); err != nil {
		return source
	}
	highlighted.source = source
	highlighted.out = b.String()
	return highlighted.out
}
