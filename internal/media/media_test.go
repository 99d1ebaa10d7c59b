package media

import (
	"testing"

	"github.com/justmiho/XHS-Downloader-Android/internal/entity"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  entity.MediaKind
	}{
		{
			name:  "uppercase mp4 suffix",
			input: "a.MP4",
			want:  entity.MediaKindVideo,
		},
		{
			name:  "bare mp4 suffix without dot",
			input: "clipmp4",
			want:  entity.MediaKindVideo,
		},
		{
			name:  "video marker beats unknown suffix",
			input: "clip_video_01.bin",
			want:  entity.MediaKindVideo,
		},
		{
			name:  "sns video cdn url",
			input: "https://sns-video-bd.xhscdn.com/stream/110/abc",
			want:  entity.MediaKindVideo,
		},
		{
			name:  "uppercase png",
			input: "pic.PNG",
			want:  entity.MediaKindImage,
		},
		{
			name:  "jpeg suffix",
			input: "photo.jpeg",
			want:  entity.MediaKindImage,
		},
		{
			name:  "webp suffix",
			input: "sticker.webp",
			want:  entity.MediaKindImage,
		},
		{
			name:  "video marker wins over image suffix",
			input: "video-thumb.jpg",
			want:  entity.MediaKindVideo,
		},
		{
			name:  "webm is not classified",
			input: "clip.webm",
			want:  entity.MediaKindOther,
		},
		{
			name:  "empty string",
			input: "",
			want:  entity.MediaKindOther,
		},
		{
			name:  "document",
			input: "notes.txt",
			want:  entity.MediaKindOther,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.input); got != tc.want {
				t.Errorf("Classify(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestResolveExtension(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "webm with query string",
			input: "https://x/y.webm?q=1",
			want:  "webm",
		},
		{
			name:  "mp4 anywhere in path",
			input: "https://cdn/v/clip.mp4/seg1",
			want:  "mp4",
		},
		{
			name:  "uppercase extension",
			input: "https://cdn/PIC.PNG",
			want:  "png",
		},
		{
			name:  "gif",
			input: "https://cdn/anim.gif",
			want:  "gif",
		},
		{
			name:  "webp before fallback",
			input: "https://cdn/img.webp!wm",
			want:  "webp",
		},
		{
			name:  "video marker forces mp4",
			input: "https://sns-video-hw.xhscdn.com/stream/110/abc",
			want:  "mp4",
		},
		{
			name:  "cdn transform url has no dotted extension",
			input: "https://ci.xiaohongshu.com/1040g008315?imageView2/format/png",
			want:  "jpg",
		},
		{
			name:  "opaque token falls back to jpg",
			input: "https://sns-img-qc.xhscdn.com/1040g008315abcdef",
			want:  "jpg",
		},
		{
			name:  "empty string falls back to jpg",
			input: "",
			want:  "jpg",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveExtension(tc.input); got != tc.want {
				t.Errorf("ResolveExtension(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
