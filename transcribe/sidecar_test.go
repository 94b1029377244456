package transcribe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:00,000 --> 00:00:02,500
Hola a todos

2
00:00:02,500 --> 00:00:05.000
bienvenidos al canal
10
00:00:05,000 --> 00:00:06,000
 hasta luego
`

func TestParseSRT(t *testing.T) {
	assert.Equal(t, "Hola a todos bienvenidos al canal hasta luego", ParseSRT(sampleSRT))
	assert.Equal(t, "", ParseSRT("1\n00:00:00,000 --> 00:00:01,000\n\n"))
	assert.Equal(t, "texto", ParseSRT("\ufeff1\r\n00:00:00,000 --> 00:00:01,000\r\ntexto\r\n"))
}

func TestReadSidecar(t *testing.T) {
	tests := []struct {
		name       string
		files      map[string]string
		wantOK     bool
		wantText   string
		wantSource string
	}{
		{
			name:   "no sidecar",
			files:  nil,
			wantOK: false,
		},
		{
			name:       "txt only",
			files:      map[string]string{"clip.txt": "  hola mundo \n"},
			wantOK:     true,
			wantText:   "hola mundo",
			wantSource: SourceSidecarTXT,
		},
		{
			name:       "txt preferred over srt",
			files:      map[string]string{"clip.txt": "from txt", "clip.srt": sampleSRT},
			wantOK:     true,
			wantText:   "from txt",
			wantSource: SourceSidecarTXT,
		},
		{
			name:       "empty txt falls through to srt",
			files:      map[string]string{"clip.txt": "   \n", "clip.srt": sampleSRT},
			wantOK:     true,
			wantText:   "Hola a todos bienvenidos al canal hasta luego",
			wantSource: SourceSidecarSRT,
		},
		{
			name:   "both empty",
			files:  map[string]string{"clip.txt": "", "clip.srt": "1\n00:00:00,000 --> 00:00:01,000\n"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
			}

			tr, ok, err := ReadSidecar(filepath.Join(dir, "clip.mp4"))

			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantText, tr.Text)
			assert.Equal(t, tt.wantSource, tr.Source)
		})
	}
}

func TestTranscriptEmpty(t *testing.T) {
	assert.True(t, Transcript{}.Empty())
	assert.True(t, Transcript{Text: " \n\t"}.Empty())
	assert.False(t, Transcript{Text: "hola"}.Empty())
}
