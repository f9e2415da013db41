package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-scan-go/domain/scan"
)

func TestSampleEAN13Decodes(t *testing.T) {
	img, err := SampleEAN13Image()
	require.NoError(t, err)

	results, err := scan.ZXingDecoder{}.Decode(img, []scan.Symbology{scan.EAN13}, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, SampleCode, results[0].Text)
	assert.Equal(t, scan.EAN13, results[0].Format)
}
