package ingest

import (
	"strings"
	"testing"
)

func TestStripHTMLBasic(t *testing.T) {
	out := StripHTML("<p>Hello <b>world</b></p>")
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "world") {
		t.Errorf("got %q", out)
	}
	if strings.Contains(out, "<") {
		t.Errorf("tags survived: %q", out)
	}
}

func TestStripHTMLSkipsScriptAndStyle(t *testing.T) {
	out := StripHTML(`<style>body{margin:0}</style><p>keep</p><script>alert("x")</script>`)
	if strings.Contains(out, "margin") || strings.Contains(out, "alert") {
		t.Errorf("script/style content survived: %q", out)
	}
	if !strings.Contains(out, "keep") {
		t.Errorf("content lost: %q", out)
	}
}

func TestStripHTMLEntities(t *testing.T) {
	out := StripHTML("a&nbsp;&amp;&nbsp;b &lt;tag&gt;")
	if !strings.Contains(out, "a & b") || !strings.Contains(out, "<tag>") {
		t.Errorf("got %q", out)
	}
}

func TestNormalizeTextCRLF(t *testing.T) {
	out := NormalizeText("line one\r\nline two\r\n")
	if out != "line one\nline two" {
		t.Errorf("got %q", out)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	out := collapseWhitespace("a   b\t\tc\n\n\nd")
	if out != "a b c\nd" {
		t.Errorf("got %q, want %q", out, "a b c\nd")
	}
}
