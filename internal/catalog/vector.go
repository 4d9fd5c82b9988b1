// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sigil-dev/quarry/internal/registry"
	"github.com/sigil-dev/quarry/internal/vectorsearch"
	"github.com/sigil-dev/quarry/internal/warehouse"
	"github.com/sigil-dev/quarry/pkg/envelope"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

const (
	noSimilarQuestion = "(No similar question found)"
	noAnswer          = "(No answer for this kb_id)"
)

func vectorTools() []registry.Descriptor {
	return []registry.Descriptor{
		{
			Name:        "vector_store_similarity_search",
			Kind:        registry.KindVectorQuery,
			Type:        registry.TypeTool,
			Description: "Enterprise Vector Store similarity search",
			Params: []registry.Param{
				requiredStr("question", "Natural language question"),
				integer("top_k", "top matches", 1),
			},
			Source:  registry.SourceBuiltin,
			Handler: registry.StaticHandler(similaritySearch),
		},
		{
			Name:        "vector_store_best_answer",
			Kind:        registry.KindVectorQuery,
			Type:        registry.TypeTool,
			Description: "Return only the best answer text from the FAQ table for the closest matching question.",
			Params: []registry.Param{
				requiredStr("question", "Natural language question"),
				integer("top_k", "top matches", 2),
				{Name: "faq_tbl", Type: registry.ParamString, Description: "FAQ table holding kb_id and answer", Default: "FAQ_DEMO"},
			},
			Source:  registry.SourceBuiltin,
			Handler: bestAnswer{},
		},
	}
}

func similaritySearch(ctx context.Context, res registry.Resources, args registry.Args) (any, error) {
	question, topK := args.String("question"), args.Int("top_k")
	result, err := res.Session.Search(ctx, vectorsearch.SearchRequest{Question: question, TopK: topK})
	if err != nil {
		return nil, err
	}
	return envelope.Response(result.Records, map[string]any{
		"tool_name": "vector_store_similarity_search",
		"question":  question,
		"top_k":     topK,
	})
}

// bestAnswer picks the highest scoring kb_id from a similarity search and
// returns its answer text from the FAQ table as a plain string. The FAQ
// lookup runs in Finish, outside the vector session.
type bestAnswer struct{}

type faqMatch struct {
	table string
	kbID  any
}

func (bestAnswer) Run(ctx context.Context, res registry.Resources, args registry.Args) (any, error) {
	table, err := ident(args, "faq_tbl")
	if err != nil {
		return nil, err
	}

	result, err := res.Session.Search(ctx, vectorsearch.SearchRequest{
		Question:      args.String("question"),
		TopK:          args.Int("top_k"),
		OutputColumns: []string{"kb_id"},
	})
	if err != nil {
		return nil, err
	}

	best, ok := highestScore(result.Records)
	if !ok {
		return noSimilarQuestion, nil
	}
	kbID, ok := best["kb_id"]
	if !ok {
		return nil, quarryerr.New(quarryerr.CodeVectorUpstreamFailure, "search result carries no kb_id")
	}
	return faqMatch{table: table, kbID: kbID}, nil
}

func (bestAnswer) Finish(ctx context.Context, res registry.Resources, searched any) (any, error) {
	m, ok := searched.(faqMatch)
	if !ok {
		return searched, nil
	}
	if res.Warehouse == nil {
		return nil, quarryerr.New(quarryerr.CodeWarehouseHandleClosed, "no warehouse configured")
	}
	conn, err := res.Warehouse.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, "SELECT answer FROM "+m.table+" WHERE kb_id = ?", m.kbID)
	if err != nil {
		return nil, err
	}
	return firstAnswer(rows), nil
}

func highestScore(records []map[string]any) (map[string]any, bool) {
	var (
		best      map[string]any
		bestScore float64
	)
	for _, r := range records {
		s, ok := toFloat(r["score"])
		if !ok {
			continue
		}
		if best == nil || s > bestScore {
			best, bestScore = r, s
		}
	}
	return best, best != nil
}

func firstAnswer(rows *warehouse.Rows) string {
	if rows.Len() == 0 || len(rows.Values[0]) == 0 {
		return noAnswer
	}
	switch v := rows.Values[0][0].(type) {
	case nil:
		return noAnswer
	case string:
		return v
	case sql.NullString:
		if !v.Valid {
			return noAnswer
		}
		return v.String
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
