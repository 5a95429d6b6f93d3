package tts

import (
	"testing"

	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/stretchr/testify/assert"
)

func TestSynthesizeRequest(t *testing.T) {
	req := synthesizeRequest("halo", "id-ID")

	assert.Equal(t, "halo", req.GetInput().GetText())
	assert.Equal(t, "id-ID", req.GetVoice().GetLanguageCode())
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, req.GetAudioConfig().GetAudioEncoding())
}
