// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package catalog

import (
	"context"

	"github.com/sigil-dev/quarry/internal/registry"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

func coreTools() []registry.Descriptor {
	return []registry.Descriptor{
		{
			Name:        "ping",
			Kind:        registry.KindAction,
			Type:        registry.TypeTool,
			Description: "Check that the server is responding.",
			Source:      registry.SourceBuiltin,
			Handler: registry.StaticHandler(func(context.Context, registry.Resources, registry.Args) (any, error) {
				return "pong", nil
			}),
		},
		{
			Name:        "reconnect_to_database",
			Kind:        registry.KindAction,
			Type:        registry.TypeTool,
			Description: "Drop the current warehouse connection and open a new one.",
			Source:      registry.SourceBuiltin,
			Handler: registry.StaticHandler(func(ctx context.Context, res registry.Resources, _ registry.Args) (any, error) {
				if res.Warehouse == nil {
					return nil, quarryerr.New(quarryerr.CodeWarehouseHandleClosed, "no warehouse configured")
				}
				if _, err := res.Warehouse.Reconnect(ctx); err != nil {
					return nil, err
				}
				return "Reconnected to the warehouse.", nil
			}),
		},
	}
}
