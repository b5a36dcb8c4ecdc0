package layouts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

const defaultLayoutCSV = `name,role,x,y,width,height,whitelist
Products,products,20,180,420,900,
Quantities_and_prices,quantities_prices,510,180,280,900,"0123456789.,xEuro "
Qrcode,qrcode,530,5,180,180,
bloc,header,10,10,520,180,
`

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCSVLoader_MatchesDefaultLayout(t *testing.T) {
	path := writeFile(t, "invoice_v1.csv", defaultLayoutCSV)

	layout, err := NewCSVLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "invoice_v1", layout.Name)
	want := extraction.DefaultLayout()
	require.Len(t, layout.Zones, len(want.Zones))
	for i, z := range want.Zones {
		assert.Equal(t, z.Name, layout.Zones[i].Name)
		assert.Equal(t, z.Role, layout.Zones[i].Role)
		assert.Equal(t, [4]int{z.X, z.Y, z.Width, z.Height},
			[4]int{layout.Zones[i].X, layout.Zones[i].Y, layout.Zones[i].Width, layout.Zones[i].Height})
	}
	assert.Equal(t, "0123456789.,xEuro ", layout.Zones[1].Whitelist)
}

func TestCSVLoader_Errors(t *testing.T) {
	tests := map[string]string{
		"missing column": "name,role,x,y,width\nbloc,header,1,1,1\n",
		"bad number":     "name,role,x,y,width,height\nbloc,header,a,1,1,1\n",
		"unknown role":   "name,role,x,y,width,height\nbloc,footer,1,1,1,1\n",
		"no zones":       "name,role,x,y,width,height\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewCSVLoader().LoadStream(context.Background(), "x", strings.NewReader(content))
			assert.Error(t, err)
		})
	}
}

func TestJSONLoader_ObjectAndArray(t *testing.T) {
	object := `{"name":"custom","zones":[{"name":"bloc","role":"header","x":10,"y":10,"width":520,"height":180}]}`
	layout, err := NewJSONLoader().LoadStream(context.Background(), "file", strings.NewReader(object))
	require.NoError(t, err)
	assert.Equal(t, "custom", layout.Name)
	require.Len(t, layout.Zones, 1)
	assert.Equal(t, extraction.RoleHeader, layout.Zones[0].Role)

	array := `[{"name":"Qrcode","role":"qrcode","x":530,"y":5,"width":180,"height":180}]`
	layout, err = NewJSONLoader().LoadStream(context.Background(), "file", strings.NewReader(array))
	require.NoError(t, err)
	assert.Equal(t, "file", layout.Name)
	assert.Equal(t, 180, layout.Zones[0].Width)
}

func TestJSONLoader_InvalidLayout(t *testing.T) {
	_, err := NewJSONLoader().LoadStream(context.Background(), "x", strings.NewReader(`{"zones":[]}`))
	assert.Error(t, err)

	_, err = NewJSONLoader().LoadStream(context.Background(), "x", strings.NewReader(`{`))
	assert.Error(t, err)
}

func TestLoaderFactory(t *testing.T) {
	factory := NewLoaderFactory()
	assert.Equal(t, []string{".csv", ".json"}, factory.SupportedFormats())

	layout, err := factory.LoadFile(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, extraction.DefaultLayout(), layout)

	layout, err = factory.LoadFile(context.Background(), writeFile(t, "zones.CSV", defaultLayoutCSV))
	require.NoError(t, err)
	assert.Len(t, layout.Zones, 4)

	_, err = factory.LoadFile(context.Background(), "zones.xlsx")
	assert.Error(t, err)

	_, err = factory.GetLoader("json")
	assert.NoError(t, err)
}
