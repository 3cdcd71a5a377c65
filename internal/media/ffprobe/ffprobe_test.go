package ffprobe

import "testing"

func TestParseAndDuration(t *testing.T) {
	payload := []byte(`{
		"streams": [
			{"index": 0, "codec_type": "audio", "duration": "40.1"},
			{"index": 1, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "duration": "40.0"}
		],
		"format": {"filename": "clip.mp4", "duration": "40.125", "format_name": "mov,mp4"}
	}`)
	result, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.DurationSeconds() != 40.125 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	stream, ok := result.VideoStream()
	if !ok || stream.Width != 1920 {
		t.Fatalf("unexpected video stream: %+v (ok=%v)", stream, ok)
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "3.5"}},
		Format:  Format{Duration: "N/A"},
	}
	if result.DurationSeconds() != 3.5 {
		t.Fatalf("expected stream duration, got %v", result.DurationSeconds())
	}
}

func TestDurationHandlesInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected 0, got %v", result.DurationSeconds())
	}
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
