package design

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestMigrateLegacy(t *testing.T) {
	doc := Migrate([]byte(`{"x":20,"y":80,"scale":1.5,"rotation":90}`))

	if doc.Version != DocumentVersion || doc.ActiveSide != SideFront {
		t.Fatalf("unexpected header %+v", doc)
	}
	if len(doc.Front) != 1 || len(doc.Back) != 0 {
		t.Fatalf("expected one front layer, got front=%d back=%d", len(doc.Front), len(doc.Back))
	}
	layer := doc.Front[0]
	want := DesignState{X: 20, Y: 80, Scale: 1.5, Rotation: 90, LockAspectRatio: true}
	if layer.DesignState != want {
		t.Fatalf("got %+v want %+v", layer.DesignState, want)
	}
	if layer.ArtifactID != "" || layer.ZIndex != 0 || layer.Kind != KindImage || layer.ID != LegacyLayerID {
		t.Fatalf("unexpected legacy layer %+v", layer)
	}
}

func TestMigrateUnknownShapes(t *testing.T) {
	inputs := []string{
		``,
		`null`,
		`42`,
		`"text"`,
		`[]`,
		`{}`,
		`{"x":"20","y":5}`,
		`{"x":null,"y":5}`,
		`{"version":2,"front":{}}`,
		`{"version":2,"front":[{"kind":"sticker"}],"back":[]}`,
		`{not json`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got := Migrate([]byte(in))
			if !reflect.DeepEqual(got, EmptyDocument()) {
				t.Fatalf("expected empty document, got %+v", got)
			}
		})
	}
}

func TestMigrateCurrentPassthrough(t *testing.T) {
	raw := `{"version":2,"activeSide":"front","front":[{"id":"a","kind":"image","artifactId":"art",` +
		`"designState":{"x":40,"y":60,"scale":1.2,"rotation":15,"lockAspectRatio":true},"zIndex":0}],"back":[]}`
	doc := Migrate([]byte(raw))
	if DetectFormat([]byte(raw)) != FormatCurrent {
		t.Fatalf("expected current format")
	}
	if len(doc.Front) != 1 || doc.Front[0].ArtifactID != "art" || doc.Front[0].DesignState.Rotation != 15 {
		t.Fatalf("unexpected passthrough %+v", doc)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	inputs := []string{
		`{"x":20,"y":80,"scale":1.5,"rotation":90}`,
		`{"x":500,"y":-3}`,
		`{"version":2,"activeSide":"back","front":[],"back":[{"id":"t","kind":"text","text":"Yo","zIndex":1,"extra":true}],"note":"x"}`,
		`garbage`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once := Migrate([]byte(in))
			encoded, err := json.Marshal(once)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			twice := Migrate(encoded)
			if !reflect.DeepEqual(once, twice) {
				t.Fatalf("not idempotent:\nonce  %+v\ntwice %+v", once, twice)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		`{"version":2,"front":[],"back":[]}`: FormatCurrent,
		`{"x":1,"y":2}`:                      FormatLegacy,
		`{"x":1}`:                            FormatUnknown,
		`{"version":"2","front":[],"back":[]}`: FormatUnknown,
	}
	for in, want := range cases {
		if got := DetectFormat([]byte(in)); got != want {
			t.Fatalf("%s: got %s want %s", in, got, want)
		}
	}
}
