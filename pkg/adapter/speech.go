package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/n-khatri/paisa/pkg/model"
	speech "google.golang.org/api/speech/v1"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

// Speech converts between audio and text at the request boundary. Audio is
// exchanged as base64-encoded bytes: WEBM_OPUS in, MP3 out.
type Speech interface {
	Transcribe(ctx context.Context, audioContent, languageCode string) (string, error)
	Synthesize(ctx context.Context, text string) (string, error)
}

type speechClient struct {
	stt *speech.Service
	tts *texttospeech.Service
}

// NewSpeech creates Speech-to-Text and Text-to-Speech service clients.
func NewSpeech(ctx context.Context) (Speech, error) {
	stt, err := speech.NewService(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create speech service")
	}

	tts, err := texttospeech.NewService(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create text-to-speech service")
	}

	return &speechClient{stt: stt, tts: tts}, nil
}

func (s *speechClient) Transcribe(ctx context.Context, audioContent, languageCode string) (string, error) {
	if languageCode == "" {
		languageCode = "en-US"
	}

	resp, err := s.stt.Speech.Recognize(&speech.RecognizeRequest{
		Audio: &speech.RecognitionAudio{Content: audioContent},
		Config: &speech.RecognitionConfig{
			Encoding:        "WEBM_OPUS",
			SampleRateHertz: 48000,
			LanguageCode:    languageCode,
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", goerr.Wrap(model.ErrTranscription, "speech recognition failed", goerr.V("cause", err.Error()))
	}

	lines := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(r.Alternatives) > 0 {
			lines = append(lines, r.Alternatives[0].Transcript)
		}
	}

	transcription := strings.TrimSpace(strings.Join(lines, "\n"))
	if transcription == "" {
		return "", goerr.Wrap(model.ErrTranscription, "no speech detected in audio")
	}
	return transcription, nil
}

func (s *speechClient) Synthesize(ctx context.Context, text string) (string, error) {
	resp, err := s.tts.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: "en-US",
			SsmlGender:   "NEUTRAL",
		},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: "MP3"},
	}).Context(ctx).Do()
	if err != nil {
		return "", goerr.Wrap(err, "speech synthesis failed")
	}

	// AudioContent is already base64-encoded by the API.
	return resp.AudioContent, nil
}
