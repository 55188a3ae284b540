package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cablefea/internal/dynamo"
)

func cableFrame(sag float64, withBody bool) *dynamo.Frame {
	f := &dynamo.Frame{Nodes: []dynamo.NodeState{
		{Pos: mgl64.Vec3{0, 0, 0}},
		{Pos: mgl64.Vec3{0.5, -sag / 3, 0}},
		{Pos: mgl64.Vec3{1, -sag, 0}},
	}}
	if withBody {
		f.Bodies = []dynamo.BodyState{{Name: "payload", Pos: mgl64.Vec3{1, -sag - 0.05, 0}}}
	}
	return f
}

func TestProfileSVG(t *testing.T) {
	frames := []*dynamo.Frame{cableFrame(0, false), cableFrame(0.1, false), cableFrame(0.2, true)}
	svg := ProfileSVG(frames, 200, 100)

	if got := strings.Count(svg, "<path"); got != 3 {
		t.Errorf("expected 3 paths, got %d", got)
	}
	if got := strings.Count(svg, `fill="#ffaa00"`); got != 1 {
		t.Errorf("expected 1 body marker, got %d", got)
	}
	if !strings.Contains(svg, `stroke-opacity="0.15"`) || !strings.Contains(svg, `stroke-opacity="1.00"`) {
		t.Error("frames should fade from old to new")
	}
	if !strings.HasSuffix(svg, "</svg>\n") {
		t.Error("unterminated svg")
	}
}

func TestProfileSVG_Empty(t *testing.T) {
	if ProfileSVG(nil, 100, 100) != "" {
		t.Error("expected empty output for no frames")
	}
	if err := WriteProfileSVG(filepath.Join(t.TempDir(), "x.svg"), nil, 100, 100); err == nil {
		t.Error("expected error for no frames")
	}
}

func TestWriteProfileSVG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.svg")
	if err := WriteProfileSVG(path, []*dynamo.Frame{cableFrame(0.1, true)}, 100, 100); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "<?xml") {
		t.Error("missing xml header")
	}
}
