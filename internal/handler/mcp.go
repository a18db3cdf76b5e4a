// MCP transport for the storefront using the official MCP Go SDK.
// Exposes browsing, negotiation, and checkout as tools so shopper agents
// can haggle over the same engine the web storefront uses.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"haggle-api/internal/model"
	"haggle-api/internal/negotiation"
)

// === MCP Tool Input/Output Types ===

// ListProductsInput is the input schema for list_products (no arguments).
type ListProductsInput struct{}

// GetProductInput is the input schema for get_product.
type GetProductInput struct {
	ID string `json:"id" jsonschema:"product ID,required"`
}

// SubmitOfferInput is the input schema for submit_offer.
// The agent keeps its own offer history and sends it with every round,
// exactly like the REST client. Product terms are resolved server-side;
// the floor price is never handed to the agent.
type SubmitOfferInput struct {
	ProductID    string    `json:"product_id" jsonschema:"product ID,required"`
	Offer        float64   `json:"offer" jsonschema:"offer amount in major currency units,required"`
	StoredOffers []float64 `json:"stored_offers" jsonschema:"prior offers for this product (empty array on the first round),required"`
}

// CreateCheckoutSessionInput is the input schema for create_checkout_session.
type CreateCheckoutSessionInput struct {
	Order map[string]interface{} `json:"order" jsonschema:"order description forwarded to the payment provider,required"`
}

// CheckoutSessionOutput wraps the provider's passthrough response.
type CheckoutSessionOutput struct {
	Session json.RawMessage `json:"session"`
}

// ProductListOutput wraps the product list.
type ProductListOutput struct {
	Products []model.Product `json:"products"`
}

// NewMCPServer creates an MCP server with storefront tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "haggle-api",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Negotiated-price storefront. Browse products, submit offers " +
				"against a hidden floor price, and create checkout sessions once a " +
				"price is accepted. Keep the stored_offers array between rounds.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_products",
		Description: "List all products open to price negotiation.",
	}, h.mcpListProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_product",
		Description: "Get one product by ID.",
	}, h.mcpGetProduct)

	mcp.AddTool(server, &mcp.Tool{
		Name: "submit_offer",
		Description: "Submit a negotiation offer for a product. Returns acceptance, " +
			"rejection with remaining rounds, or a generated special offer. Append the " +
			"echoed newOffer to stored_offers before the next round.",
	}, h.mcpSubmitOffer)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_checkout_session",
		Description: "Create a payment checkout session for an accepted or special offer.",
	}, h.mcpCreateCheckoutSession)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpListProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListProductsInput,
) (*mcp.CallToolResult, *ProductListOutput, error) {
	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &ProductListOutput{Products: products}, nil
}

func (h *Handler) mcpGetProduct(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetProductInput,
) (*mcp.CallToolResult, *model.Product, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}

	product, err := h.catalog.GetProduct(ctx, input.ID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, product, nil
}

func (h *Handler) mcpSubmitOffer(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SubmitOfferInput,
) (*mcp.CallToolResult, *model.OfferResponse, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}

	product, err := h.catalog.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	terms := negotiation.Terms{
		Price:     product.Price,
		MinPrice:  product.MinPrice,
		MaxOffers: product.MaxOffers,
	}

	resp, err := h.engine.Evaluate(terms, input.StoredOffers, input.Offer)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, resp, nil
}

func (h *Handler) mcpCreateCheckoutSession(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CreateCheckoutSessionInput,
) (*mcp.CallToolResult, *CheckoutSessionOutput, error) {
	if h.checkout == nil {
		return nil, nil, h.mcpError(model.NewConfigurationError("payment provider"))
	}
	if len(input.Order) == 0 {
		return nil, nil, fmt.Errorf("order is required")
	}

	order, err := json.Marshal(input.Order)
	if err != nil {
		return nil, nil, fmt.Errorf("order is not serializable")
	}

	session, err := h.checkout.CreateCheckoutSession(ctx, order)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &CheckoutSessionOutput{Session: session}, nil
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
