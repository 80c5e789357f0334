// File: internal/intent/llm.go
package intent

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// systemPrompt instructs the model to answer with strict JSON only. The
// utterances are Colombian Spanish voice transcriptions.
const systemPrompt = `Eres el módulo NLU de un asistente bancario de voz.
Tu trabajo es extraer la intención del usuario a partir de su mensaje de voz en español.

REGLAS:
- Responde SOLO con JSON válido, sin texto adicional
- Extrae montos numéricos (50 mil = 50000, un millón = 1000000)
- Identifica nombres de personas como recipients
- Detecta fuentes de dinero (bolsillo, cuenta principal)
- Si no estás seguro, usa confidence < 0.7

INTENCIONES SOPORTADAS:
- send_money: Enviar/transferir dinero a alguien
- check_balance: Consultar saldo o movimientos
- transfer_pocket: Mover dinero entre bolsillos
- pay_bill: Pagar un servicio (luz, agua, internet, etc.)
- transaction_history: Ver historial de transacciones
- open_app: Solo abrir la app del banco

FORMATO DE RESPUESTA:
{
  "intent": "send_money",
  "confidence": 0.95,
  "params": {
    "amount": 50000,
    "recipient": "María",
    "source": "cuenta_principal"
  }
}`

// modelReply is the JSON shape the model is instructed to produce.
type modelReply struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Params     map[string]any `json:"params"`
}

// LLMExtractor asks a generative model for the structured intent and falls
// back to the rule extractor whenever the model path fails. Callers never see
// a model failure: the fallback result is returned instead.
type LLMExtractor struct {
	client   *genai.Client
	cfg      config.LLMConfig
	fallback *RuleExtractor
	logger   *zap.Logger
}

var _ schemas.IntentExtractor = (*LLMExtractor)(nil)

// NewLLMExtractor initializes the genai client. The API key is required.
func NewLLMExtractor(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*LLMExtractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &LLMExtractor{
		client:   client,
		cfg:      cfg,
		fallback: NewRuleExtractor(logger),
		logger:   logger.Named("intent.llm"),
	}, nil
}

// Ready reports whether the backing model client is available.
func (e *LLMExtractor) Ready() bool { return e.client != nil }

// Extract runs the model with a strict-JSON prompt. Transport errors, empty
// candidates and malformed JSON all route to the rule extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (schemas.Intent, error) {
	start := time.Now()

	if e.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.APITimeout)
		defer cancel()
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.cfg.Model,
		genai.Text(text),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(e.cfg.Temperature),
			MaxOutputTokens:   int32(e.cfg.MaxTokens),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		e.logger.Warn("model request failed, using rule extraction", zap.Error(err))
		return e.fallback.Extract(ctx, text)
	}

	raw := resp.Text()
	if raw == "" {
		e.logger.Warn("model returned empty content, using rule extraction")
		return e.fallback.Extract(ctx, text)
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		e.logger.Warn("failed to parse model reply, using rule extraction",
			zap.Error(err), zap.String("reply", raw))
		return e.fallback.Extract(ctx, text)
	}
	if reply.Intent == "" {
		reply.Intent = IntentUnknown
	}
	if reply.Params == nil {
		reply.Params = map[string]any{}
	}

	e.logger.Info("intent extracted",
		zap.String("intent", reply.Intent),
		zap.Float64("confidence", reply.Confidence),
		zap.Duration("duration", time.Since(start)),
	)

	return schemas.Intent{
		Name:       reply.Intent,
		Confidence: reply.Confidence,
		Params:     reply.Params,
		RawText:    text,
	}, nil
}
