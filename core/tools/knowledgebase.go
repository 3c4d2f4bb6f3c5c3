package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultKnowledgeBaseTimeout = 10 * time.Second
	maxKnowledgeBaseResponse    = 1 << 20
)

var ErrNoKnowledgeBase = errors.New("no knowledge base configured")

// KnowledgeBase answers lookups by posting {"query": ...} to URL and using
// the JSON response as the tool result.
type KnowledgeBase struct {
	url    string
	client *http.Client
}

type KnowledgeBaseOption func(*KnowledgeBase)

func WithHTTPClient(client *http.Client) KnowledgeBaseOption {
	return func(kb *KnowledgeBase) {
		kb.client = client
	}
}

func NewKnowledgeBase(url string, opts ...KnowledgeBaseOption) *KnowledgeBase {
	kb := &KnowledgeBase{
		url: url,
		client: &http.Client{
			Timeout: defaultKnowledgeBaseTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			),
		},
	}
	for _, opt := range opts {
		opt(kb)
	}
	return kb
}

// Handle looks up the query of call. A nil knowledge base, or one without a
// URL, fails with ErrNoKnowledgeBase.
func (kb *KnowledgeBase) Handle(ctx context.Context, call Call) (any, error) {
	if kb == nil || kb.url == "" {
		return nil, ErrNoKnowledgeBase
	}

	query, err := call.Query()
	if err != nil {
		return nil, err
	}
	return kb.Retrieve(ctx, query)
}

func (kb *KnowledgeBase) Retrieve(ctx context.Context, query string) (any, error) {
	ctx, span := tracer.Start(ctx, "retrieve from knowledge base")
	defer span.End()
	span.SetAttributes(attribute.String("knowledge_base.query", query))

	body, err := json.Marshal(struct {
		Query string `json:"query"`
	}{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, kb.url, bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := kb.client.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("knowledge base responded with status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var result any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKnowledgeBaseResponse)).Decode(&result); err != nil {
		err = fmt.Errorf("error decoding knowledge base response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}
