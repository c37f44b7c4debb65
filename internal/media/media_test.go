package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		filename    string
		want        Kind
	}{
		{"image content type", "image/png", "", KindImage},
		{"video content type", "video/mp4", "", KindVideo},
		{"content type wins over extension", "image/gif", "clip.mp4", KindImage},
		{"image extension fallback", "", "meme.PNG", KindImage},
		{"video extension fallback", "application/octet-stream", "clip.webm", KindVideo},
		{"query-free path only", "", "dir/meme.jpeg", KindImage},
		{"unknown extension", "", "notes.txt", KindUnknown},
		{"no hints", "", "", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.contentType, tt.filename))
		})
	}
}
