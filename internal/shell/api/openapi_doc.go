package api

import (
	"encoding/json"
	"log/slog"

	"github.com/lamdp/shiptrack/internal/shell/api/openapi"
)

// buildOpenAPIDocument renders the OpenAPI description of the API from its
// request and response structs.
func buildOpenAPIDocument(logger *slog.Logger) []byte {
	gen := openapi.NewGenerator(
		openapi.WithTitle("ShipTrack API"),
		openapi.WithVersion("1.0.0"),
		openapi.WithDescription("Device repair shipment tracking API"),
	)

	gen.RegisterResource(openapi.ResourceInfo{
		Name:        "shipments",
		Model:       ShipmentResponse{},
		CreateModel: CreateShipmentRequest{},
		UpdateModel: UpdateShipmentRequest{},
		ListParams: []openapi.QueryParam{
			{Name: "status", Description: "Restrict to one shipment status."},
			{Name: "request_type", Description: "Restrict to one request type."},
			{Name: "store", Description: "Restrict to shipments assigned to this store."},
			{
				Name:        "since",
				Format:      "date-time",
				Description: "RFC3339 lower bound on sent_time, compared as given with no truncation. Clients compute day, week or month boundaries themselves.",
			},
		},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
	})
	gen.RegisterResource(openapi.ResourceInfo{
		Name:           "suppliers",
		Model:          SupplierResponse{},
		CreateModel:    SupplierRequest{},
		UpdateModel:    SupplierRequest{},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
	})
	gen.RegisterResource(openapi.ResourceInfo{
		Name:           "stores",
		Model:          StoreResponse{},
		CreateModel:    StoreRequest{},
		UpdateModel:    StoreRequest{},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
	})
	gen.RegisterResource(openapi.ResourceInfo{
		Name:           "users",
		Model:          UserResponse{},
		CreateModel:    CreateUserRequest{},
		UpdateModel:    UpdateUserRequest{},
		IDType:         "string",
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
	})
	gen.RegisterResource(openapi.ResourceInfo{
		Name:           "transfers",
		Model:          TransferResponse{},
		CreateModel:    CreateTransferRequest{},
		SupportsFind:   true,
		SupportsCreate: true,
	})

	doc, err := json.Marshal(gen.Generate())
	if err != nil {
		logger.Error("failed to render openapi document", "error", err)
		return nil
	}
	return doc
}
