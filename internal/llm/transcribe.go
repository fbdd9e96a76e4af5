package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/openai/openai-go"

	"github.com/soyeahso/nerdson/internal/logging"
	"github.com/soyeahso/nerdson/internal/version"
)

// MediaAuth holds the credentials used to download gateway-hosted media.
type MediaAuth struct {
	Username string
	Password string
}

// WhisperClient downloads an audio attachment and asks the provider for a
// transcription.
type WhisperClient struct {
	api      openai.Client
	cfg      OpenAIConfig
	hasKey   bool
	media    *http.Client
	auth     MediaAuth
	maxBytes int64
	log      *logging.Logger
}

// NewWhisperClient creates a transcription client. maxBytes caps the media
// download; zero means 25 MiB.
func NewWhisperClient(cfg OpenAIConfig, auth MediaAuth, maxBytes int64, log *logging.Logger) *WhisperClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	media := cfg.HTTPClient
	if media == nil {
		media = &http.Client{}
	}
	return &WhisperClient{
		api:      openai.NewClient(requestOptions(cfg)...),
		cfg:      cfg,
		hasKey:   cfg.APIKey != "",
		media:    media,
		auth:     auth,
		maxBytes: maxBytes,
		log:      log.Sub("whisper"),
	}
}

// Transcribe fetches mediaURL and returns the recognized text.
func (c *WhisperClient) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	if !c.hasKey {
		return "", &ProviderError{Provider: providerName, Kind: KindConfig, Message: "OPENAI_API_KEY is not set"}
	}

	audio, contentType, err := c.fetch(ctx, mediaURL)
	if err != nil {
		c.log.Warn().Err(err).Str("url", mediaURL).Msg("media download failed")
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     &namedReader{Reader: bytes.NewReader(audio), name: "audio" + extensionFor(contentType), contentType: contentType},
		Model:    openai.AudioModel(c.cfg.TranscriptionModel),
		Language: openai.String(c.cfg.Language),
	})
	if err != nil {
		pe := classify(err)
		c.log.Warn().Err(err).Str("kind", string(pe.Kind)).Int("status", pe.Code).Msg("transcription failed")
		return "", pe
	}

	c.log.Debug().Int("bytes", len(audio)).Dur("duration", time.Since(start)).Msg("audio transcribed")
	return resp.Text, nil
}

func (c *WhisperClient) fetch(ctx context.Context, mediaURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", &ProviderError{Provider: "media", Kind: KindUnexpected, Message: err.Error(), Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if c.auth.Username != "" {
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	}

	resp, err := c.media.Do(req)
	if err != nil {
		pe := classify(err)
		pe.Provider = "media"
		return nil, "", pe
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &ProviderError{
			Provider: "media",
			Kind:     KindForStatus(resp.StatusCode),
			Code:     resp.StatusCode,
			Message:  http.StatusText(resp.StatusCode),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", &ProviderError{Provider: "media", Kind: KindTransport, Message: err.Error(), Err: err}
	}
	if int64(len(data)) > c.maxBytes {
		return nil, "", &ProviderError{
			Provider: "media",
			Kind:     KindUnexpected,
			Message:  fmt.Sprintf("media exceeds %d bytes", c.maxBytes),
		}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// namedReader gives the multipart encoder a filename and content type; the
// provider detects the audio format from the extension.
type namedReader struct {
	io.Reader
	name        string
	contentType string
}

func (r *namedReader) Filename() string { return r.name }

func (r *namedReader) ContentType() string {
	if r.contentType == "" {
		return "application/octet-stream"
	}
	return r.contentType
}

// WhatsApp voice notes arrive as audio/ogg with a codecs parameter.
var audioExtensions = map[string]string{
	"audio/ogg":   ".ogg",
	"audio/mpeg":  ".mp3",
	"audio/mp4":   ".m4a",
	"audio/aac":   ".m4a",
	"audio/amr":   ".amr",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/webm":  ".webm",
}

func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".ogg"
	}
	if ext, ok := audioExtensions[mt]; ok {
		return ext
	}
	return ".ogg"
}
