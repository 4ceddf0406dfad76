package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"gem_exchange/internal/domain"
)

const (
	defaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel = "gemini-2.5-flash"
)

const analysisPromptFmt = `You are a savvy, professional cryptocurrency market analyst providing insights for a simulated trading dashboard.
Your analysis should be concise, insightful, and use common trading terminology (e.g., support, resistance, bullish, bearish, volatility, momentum).
Do not give financial advice. Frame your response as an observation of simulated market conditions.

Analyze the current situation for the trading pair: %s.
- Current Price: $%.2f
- 24h Change: %.2f%%

Provide a one-paragraph technical analysis based on this information.`

const chatSystemInstruction = `You are a helpful and knowledgeable cryptocurrency trading assistant named 'Gem'.
- Your goal is to provide educational and insightful information about trading concepts, market analysis, and the specific assets being discussed.
- You must not give financial advice. Never tell the user to buy, sell, or hold any asset.
- Use the provided market context to answer questions relevantly.
- Keep your answers concise and easy to understand.`

// Gemini generateContent wire types (request and response subset).
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// MarketContext pins a chat turn to the market the user is looking at.
type MarketContext struct {
	Pair  string
	Price string
}

// GeminiClient is a thin wrapper over the generative-text API. It is an
// external collaborator: every failure is an ExternalServiceError the
// caller degrades to a visible message, and its latency never gates the
// market core.
type GeminiClient struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGeminiClient creates a client. Empty arguments fall back to the
// public endpoint and default model.
func NewGeminiClient(apiURL, apiKey, model string, timeout time.Duration) *GeminiClient {
	if apiURL == "" {
		apiURL = defaultGeminiURL
	}
	if model == "" {
		model = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GeminiClient{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// MarketAnalysis requests a one-paragraph technical analysis for the
// pair at the given price and session change.
func (c *GeminiClient) MarketAnalysis(ctx context.Context, pair string, price, changePct float64) (string, error) {
	prompt := fmt.Sprintf(analysisPromptFmt, pair, price, changePct)
	return c.generate(ctx, geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
}

// ChatReply answers a user question given the prior conversation turns
// and the current market context.
func (c *GeminiClient) ChatReply(ctx context.Context, history []domain.ChatMessage, question string, mc MarketContext) (string, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, msg := range history {
		contents = append(contents, geminiContent{
			Role:  msg.Role,
			Parts: []geminiPart{{Text: msg.Text}},
		})
	}
	contents = append(contents, geminiContent{
		Role: domain.ChatRoleUser,
		Parts: []geminiPart{{Text: fmt.Sprintf("(Current Market Context: %s at $%s) \n\nMy question is: %s",
			mc.Pair, mc.Price, question)}},
	})

	return c.generate(ctx, geminiRequest{
		Contents:          contents,
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: chatSystemInstruction}}},
	})
}

// generate posts one generateContent request with retry on retriable
// failures (exponential backoff: 1s, 2s).
func (c *GeminiClient) generate(ctx context.Context, req geminiRequest) (string, error) {
	if c.apiKey == "" {
		return "", domain.NewFatalExternalServiceError("gemini", "request", fmt.Errorf("API key not configured"))
	}

	GlobalMetrics.RecordAIRequest()

	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * time.Second
			slog.Info("Retrying AI request", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return "", domain.NewFatalExternalServiceError("gemini", "request", ctx.Err())
			case <-time.After(delay):
			}
		}

		text, err := c.doGenerate(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !domain.IsRetriable(err) {
			break
		}
		slog.Warn("AI request attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}

	GlobalMetrics.RecordError()
	return "", lastErr
}

func (c *GeminiClient) doGenerate(ctx context.Context, req geminiRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", domain.NewFatalExternalServiceError("gemini", "encode", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.apiURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewFatalExternalServiceError("gemini", "request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.NewExternalServiceError("gemini", "request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewExternalServiceError("gemini", "read", err)
	}

	// 5xx and rate limits are worth retrying; other statuses are not.
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", domain.NewExternalServiceError("gemini", "request", err)
		}
		return "", domain.NewFatalExternalServiceError("gemini", "request", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", domain.NewFatalExternalServiceError("gemini", "decode", err)
	}
	if parsed.Error != nil {
		return "", domain.NewFatalExternalServiceError("gemini", "decode",
			fmt.Errorf("API error %d: %s", parsed.Error.Code, parsed.Error.Message))
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", domain.NewFatalExternalServiceError("gemini", "decode", fmt.Errorf("empty response"))
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
