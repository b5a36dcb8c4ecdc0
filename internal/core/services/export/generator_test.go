package export

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
)

func doc(i int, client string, total string) Document {
	invoiceID := fmt.Sprintf("2019-%04d-1", i)
	return DocumentFromSet(&domain.EntitySet{
		SourceFile: fmt.Sprintf("FAC_2019_%04d-1.png", i),
		Client:     domain.Client{ID: client},
		Invoice:    domain.Invoice{ID: invoiceID, RawText: "Bill to ...", Total: decimal.RequireFromString(total)},
		Products:   []domain.Product{{ID: "PROD_mug"}},
		Purchases:  []domain.Purchase{{ProductID: "PROD_mug", ClientID: client, InvoiceID: invoiceID, Quantity: 1}},
	}, map[string]int{"purchases": 1})
}

func TestGenerator_GenerateArchive(t *testing.T) {
	g := NewGenerator(nil)

	archive, err := g.GenerateArchive("run-1", []Document{
		doc(1, "CLT_a", "10.50"),
		doc(2, "CLT_a", "4.25"),
		doc(3, "CLT_b", "1.00"),
	}, DefaultGeneratorConfig())
	require.NoError(t, err)

	assert.Equal(t, "run-1", archive.Metadata.RunID)
	assert.Equal(t, 3, archive.Metadata.TotalDocuments)
	assert.Equal(t, 2, archive.Stats.Clients)
	assert.Equal(t, 1, archive.Stats.Products)
	assert.Equal(t, 3, archive.Stats.Purchases)
	assert.True(t, archive.Stats.TotalAmount.Equal(decimal.RequireFromString("15.75")))
	assert.NoError(t, g.ValidateArchive(archive))
	assert.Equal(t, "entities.json", FileName(archive))
}

func TestGenerator_OmitRawTextDoesNotMutateInput(t *testing.T) {
	g := NewGenerator(nil)
	input := []Document{doc(1, "CLT_a", "1.00")}

	archive, err := g.GenerateArchive("run", input, GeneratorConfig{OmitRawText: true})
	require.NoError(t, err)
	assert.Empty(t, archive.Documents[0].Entities.Invoice.RawText)
	assert.Equal(t, "Bill to ...", input[0].Entities.Invoice.RawText)
}

func TestGenerator_Errors(t *testing.T) {
	g := NewGenerator(nil)

	_, err := g.GenerateArchive("run", nil, DefaultGeneratorConfig())
	assert.Error(t, err)

	_, err = g.GenerateArchive("run", []Document{{SourceFile: "x.png"}}, DefaultGeneratorConfig())
	assert.Error(t, err)

	_, err = g.GenerateChunks("run", []Document{doc(1, "CLT_a", "1")}, GeneratorConfig{})
	assert.Error(t, err)

	assert.Error(t, g.ValidateArchive(nil))
	dup := &Archive{Documents: []Document{doc(1, "CLT_a", "1"), doc(1, "CLT_a", "1")}}
	assert.Error(t, g.ValidateArchive(dup))
}

func TestGenerator_GenerateChunks(t *testing.T) {
	g := NewGenerator(nil)
	docs := make([]Document, 0, 25)
	for i := 0; i < 25; i++ {
		docs = append(docs, doc(i, "CLT_a", "1.00"))
	}

	chunks, err := g.GenerateChunks("run", docs, DefaultGeneratorConfig().WithChunkSize(10))
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 10, chunks[0].Metadata.TotalDocuments)
	assert.Equal(t, 5, chunks[2].Metadata.TotalDocuments)
	assert.Equal(t, 3, chunks[2].Metadata.TotalChunks)
	assert.Equal(t, "entities_0003.json", FileName(chunks[2]))
}

func TestGenerator_ToJSON(t *testing.T) {
	g := NewGenerator(nil)
	archive, err := g.GenerateArchive("run", []Document{doc(1, "CLT_a", "10.50")}, DefaultGeneratorConfig())
	require.NoError(t, err)

	data, err := g.ToJSON(archive, true)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	stats := decoded["stats"].(map[string]interface{})
	assert.Equal(t, "10.5", stats["total_amount"])

	pretty, err := g.ToJSON(archive, false)
	require.NoError(t, err)
	assert.Greater(t, len(pretty), len(data))
}
