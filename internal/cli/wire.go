package cli

import (
	"fmt"
	"time"

	"github.com/soyeahso/nerdson/internal/channel/whatsapp"
	"github.com/soyeahso/nerdson/internal/config"
	"github.com/soyeahso/nerdson/internal/domain"
	"github.com/soyeahso/nerdson/internal/hooks"
	"github.com/soyeahso/nerdson/internal/llm"
	"github.com/soyeahso/nerdson/internal/logging"
	"github.com/soyeahso/nerdson/internal/persona"
	"github.com/soyeahso/nerdson/internal/policy"
	"github.com/soyeahso/nerdson/internal/routing"
	"github.com/soyeahso/nerdson/internal/store"
)

// relay is the assembled message pipeline shared by serve and chat.
type relay struct {
	engine *routing.Engine
	hooks  *hooks.Manager
	db     *store.DB
}

func (r *relay) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// relayOptions tweaks the pipeline for the local chat command.
type relayOptions struct {
	noPauses bool
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func openAIConfig(cfg config.OpenAIConfig) llm.OpenAIConfig {
	return llm.OpenAIConfig{
		APIKey:             cfg.APIKey,
		BaseURL:            cfg.BaseURL,
		Model:              cfg.Model,
		Temperature:        cfg.Temperature,
		TranscriptionModel: cfg.TranscriptionModel,
		Language:           cfg.Language,
		Timeout:            seconds(cfg.TimeoutSeconds),
	}
}

func newWhatsAppSender(cfg config.WhatsAppConfig, log *logging.Logger) *whatsapp.Sender {
	return whatsapp.NewSender(whatsapp.Config{
		AccountSID: cfg.AccountSID,
		AuthToken:  cfg.AuthToken,
		From:       cfg.From,
		APIBase:    cfg.APIBase,
		Timeout:    seconds(cfg.TimeoutSeconds),
	}, log)
}

// buildRelay wires persona, policy, providers, hooks and the optional
// archive into a routing engine that replies through sender.
func buildRelay(cfg config.Config, sender domain.Sender, opts relayOptions, log *logging.Logger) (*relay, error) {
	prompt, err := persona.Load(cfg.Persona.PromptFile)
	if err != nil {
		return nil, err
	}

	pol, err := policy.FromConfig(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("building policy: %w", err)
	}
	if opts.noPauses {
		pol.GreetingPause = 0
		pol.ReplyPause = 0
	}

	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set; replies will carry the missing-key notice")
	}
	if cfg.WhatsApp.AccountSID == "" || cfg.WhatsApp.AuthToken == "" {
		log.Warn().Msg("Twilio credentials not set; outbound messages will fail")
	}

	aiCfg := openAIConfig(cfg.OpenAI)
	completer := llm.NewOpenAIClient(aiCfg, log)
	transcriber := llm.NewWhisperClient(aiCfg, llm.MediaAuth{
		Username: cfg.WhatsApp.AccountSID,
		Password: cfg.WhatsApp.AuthToken,
	}, cfg.OpenAI.MaxMediaBytes, log)

	hm := hooks.NewManager(log)

	var db *store.DB
	if cfg.Archive.Enabled {
		path := paths.ArchivePath(cfg.Archive)
		db, err = store.Open(path, log)
		if err != nil {
			return nil, fmt.Errorf("opening archive: %w", err)
		}
		store.NewArchive(db).Attach(hm)
	}

	engine := routing.NewEngine(routing.Options{
		Policy:      pol,
		Persona:     prompt,
		Sender:      sender,
		Completer:   completer,
		Transcriber: transcriber,
		Hooks:       hm,
	}, log)

	log.Info().
		Str("model", cfg.OpenAI.Model).
		Str("timezone", cfg.Policy.Timezone).
		Str("keyword", pol.Keyword).
		Dur("idle", pol.Idle).
		Bool("archive", db != nil).
		Msg("relay ready")

	return &relay{engine: engine, hooks: hm, db: db}, nil
}
