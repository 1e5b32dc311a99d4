package doctext

import (
	"strings"
	"testing"
)

func TestExtract_Text(t *testing.T) {
	got, err := Extract("  Section 1.   Short title \r\n\n\n  This Act may be cited  ", FormatText)
	if err != nil {
		t.Fatal(err)
	}
	want := "Section 1. Short title\nThis Act may be cited"
	if got != want {
		t.Errorf("Extract() = %q, want %q", got, want)
	}
}

func TestExtract_HTML(t *testing.T) {
	html := `<html><head><style>p{}</style><script>alert(1)</script></head>
<body><nav>Menu</nav><h1>H.R. 1</h1><p>An Act to   fund <b>schools</b>.</p>
<ul><li>Sec. 2 grants</li></ul><footer>copyright</footer></body></html>`

	got, err := Extract(html, FormatHTML)
	if err != nil {
		t.Fatal(err)
	}
	want := "H.R. 1\nAn Act to fund schools.\nSec. 2 grants"
	if got != want {
		t.Errorf("Extract() = %q, want %q", got, want)
	}
}

func TestExtract_HTMLWithoutBlocks(t *testing.T) {
	got, err := Extract("<div>just <span>inline</span> text</div>", FormatHTML)
	if err != nil {
		t.Fatal(err)
	}
	if got != "just inline text" {
		t.Errorf("Extract() = %q", got)
	}
}

func TestExtract_PDFBadBase64(t *testing.T) {
	if _, err := Extract("%%% not base64", FormatPDF); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestPlain_FallsBackToBody(t *testing.T) {
	got := Plain("not   a pdf", FormatPDF)
	if got != "not a pdf" {
		t.Errorf("Plain() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("Truncate() = %q", got)
	}
	long := strings.Repeat("a", 10)
	if got := Truncate(long, 0); got != long {
		t.Errorf("Truncate(n=0) changed input")
	}
	if got := Truncate("abc", 8000); got != "abc" {
		t.Errorf("Truncate() = %q", got)
	}
}
