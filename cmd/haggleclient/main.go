// haggleclient is a CLI tool for testing the negotiation storefront.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	haggleclient products -api URL
//	haggleclient product -api URL -id <product-id>
//	haggleclient offer -api URL -product ID -offer N -price N -floor N [-stored 100,110]
//	haggleclient checkout -api URL -product ID -amount N
//	haggleclient webhook -api URL -secret S [-type checkout.completed]
//
// Examples:
//
//	haggleclient products -api http://localhost:8080
//	haggleclient offer -api http://localhost:8080 -product 1 -offer 120 -price 199.99 -floor 149.99
//	haggleclient offer -api http://localhost:8080 -product 1 -offer 160 -price 199.99 -floor 149.99 -stored 120
//	haggleclient checkout -api http://localhost:8080 -product 1 -amount 160
//	haggleclient webhook -api http://localhost:8080 -secret whsec_dev -type checkout.completed
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"haggle-api/internal/webhook"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	apiURL  string
	quiet   bool
	noColor bool
	verbose bool
)

// agentHeader identifies this client to the storefront's agent gate.
const agentHeader = `id="haggleclient", version="1.0.0"`

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorBlue, colorCyan, colorGray, colorBold = "", "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "products":
		runProducts(args)
	case "product":
		runProduct(args)
	case "offer":
		runOffer(args)
	case "checkout":
		runCheckout(args)
	case "webhook":
		runWebhook(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `haggleclient - negotiation storefront test tool

Usage:
  haggleclient <command> [options]

Commands:
  products  List negotiable products
  product   Get one product by ID
  offer     Submit a negotiation offer
  checkout  Create a payment checkout session
  webhook   Send a signed test webhook to the callback endpoint

Examples:
  # List the catalog
  haggleclient products -api http://localhost:8080

  # First offer (gets rejected or accepted)
  haggleclient offer -api http://localhost:8080 -product 1 -offer 120 -price 199.99 -floor 149.99

  # Second round: carry the prior offer forward
  haggleclient offer -api http://localhost:8080 -product 1 -offer 160 -price 199.99 -floor 149.99 -stored 120

  # Checkout the accepted price
  haggleclient checkout -api http://localhost:8080 -product 1 -amount 160

  # Verify the webhook endpoint end to end
  haggleclient webhook -api http://localhost:8080 -secret whsec_dev -type checkout.completed

Run 'haggleclient <command> -h' for command-specific options.
`)
}

// addCommonFlags wires the flags every command shares.
func addCommonFlags(fs *flag.FlagSet) {
	fs.StringVar(&apiURL, "api", "http://localhost:8080", "API base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - minimal output")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
}

// =============================================================================
// PRODUCTS COMMAND
// =============================================================================

func runProducts(args []string) {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: haggleclient products [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}

	resp, err := doRequest("GET", "/products", nil)
	if err != nil {
		fatal("Failed to list products: %v", err)
	}

	products, _ := resp["products"].([]interface{})
	if quiet {
		for _, p := range products {
			if pm, ok := p.(map[string]interface{}); ok {
				fmt.Println(pm["id"])
			}
		}
		return
	}

	printSuccess("%d product(s)", len(products))
	for _, p := range products {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Printf("  %s%v%s  %s%v%s  $%v  (max %v offers)\n",
			colorCyan, pm["id"], colorReset,
			colorBold, pm["name"], colorReset,
			pm["price"], pm["maxOffersCount"])
	}
}

// =============================================================================
// PRODUCT COMMAND
// =============================================================================

func runProduct(args []string) {
	fs := flag.NewFlagSet("product", flag.ExitOnError)
	addCommonFlags(fs)
	var id string
	fs.StringVar(&id, "id", "", "Product ID (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: haggleclient product -id <product-id> [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}
	if id == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("GET", "/products/"+url.PathEscape(id), nil)
	if err != nil {
		fatal("Failed to get product: %v", err)
	}

	if quiet {
		fmt.Println(resp["price"])
		return
	}

	printSuccess("Product retrieved")
	fmt.Printf("  Name:  %s%v%s\n", colorCyan, resp["name"], colorReset)
	fmt.Printf("  Price: %s$%v%s\n", colorGreen, resp["price"], colorReset)
	fmt.Printf("  Max offers: %v\n", resp["maxOffersCount"])
}

// =============================================================================
// OFFER COMMAND
// =============================================================================

func runOffer(args []string) {
	fs := flag.NewFlagSet("offer", flag.ExitOnError)
	addCommonFlags(fs)

	var productID, stored string
	var offer, price, floor float64
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.Float64Var(&offer, "offer", 0, "Offer amount (required)")
	fs.Float64Var(&price, "price", 0, "List price (required)")
	fs.Float64Var(&floor, "floor", 0, "Minimum acceptable price (required)")
	fs.StringVar(&stored, "stored", "", "Comma-separated prior offers, e.g. 100,110")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: haggleclient offer -product ID -offer N -price N -floor N [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}
	if productID == "" || offer <= 0 || price <= 0 || floor <= 0 {
		fs.Usage()
		os.Exit(1)
	}

	storedOffers, err := parseStored(stored)
	if err != nil {
		fatal("Invalid -stored value: %v", err)
	}

	reqBody := map[string]interface{}{
		"productId":    productID,
		"price":        price,
		"minPrice":     floor,
		"offer":        offer,
		"storedOffers": storedOffers,
	}

	resp, err := doRequest("POST", "/offers", reqBody)
	if err != nil {
		fatal("Offer failed: %v", err)
	}

	message, _ := resp["message"].(string)
	if quiet {
		// Machine-readable: outcome and the amount that matters for it.
		switch {
		case resp["acceptedOffer"] != nil:
			fmt.Printf("accepted %v\n", resp["acceptedOffer"])
		case resp["specialOffer"] != nil:
			fmt.Printf("special %v\n", resp["specialOffer"])
		default:
			fmt.Println("rejected")
		}
		return
	}

	switch {
	case resp["acceptedOffer"] != nil:
		printSuccess("%s", message)
	case resp["specialOffer"] != nil:
		printWarning("%s", message)
	default:
		printError("%s", message)
	}

	if newOffer, ok := resp["newOffer"]; ok && newOffer != nil {
		next := append(storedOffers, toFloat(newOffer))
		printInfo("Next round: -stored %s", joinFloats(next))
	}
}

// parseStored parses a comma-separated offer list. Empty input is a
// valid first round and yields an empty (non-nil) slice.
func parseStored(s string) ([]float64, error) {
	out := []float64{}
	if s == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		out = append(out, v)
	}
	return out, nil
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

func toFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

// =============================================================================
// CHECKOUT COMMAND
// =============================================================================

func runCheckout(args []string) {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	addCommonFlags(fs)

	var productID string
	var amount float64
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.Float64Var(&amount, "amount", 0, "Agreed price (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: haggleclient checkout -product ID -amount N [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}
	if productID == "" || amount <= 0 {
		fs.Usage()
		os.Exit(1)
	}

	reqBody := map[string]interface{}{
		"lineItems": []map[string]interface{}{
			{"productId": productID, "amount": amount, "quantity": 1},
		},
	}

	resp, err := doRequest("POST", "/ivy/checkout-sessions", reqBody)
	if err != nil {
		fatal("Failed to create checkout session: %v", err)
	}

	redirect, _ := resp["redirectUrl"].(string)
	if quiet {
		fmt.Println(redirect)
		return
	}

	printSuccess("Checkout session created")
	if id, ok := resp["id"].(string); ok {
		fmt.Printf("  ID: %s%s%s\n", colorCyan, id, colorReset)
	}
	if redirect != "" {
		fmt.Printf("  Redirect: %s%s%s\n", colorBlue, redirect, colorReset)
	}
}

// =============================================================================
// WEBHOOK COMMAND
// =============================================================================

func runWebhook(args []string) {
	fs := flag.NewFlagSet("webhook", flag.ExitOnError)
	addCommonFlags(fs)

	var secret, eventType, payload string
	fs.StringVar(&secret, "secret", "", "Webhook signing secret (required)")
	fs.StringVar(&eventType, "type", "test", "Event type")
	fs.StringVar(&payload, "payload", "", "Raw event JSON (overrides -type)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: haggleclient webhook -secret S [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}
	if secret == "" {
		fs.Usage()
		os.Exit(1)
	}

	body := []byte(payload)
	if payload == "" {
		event := map[string]interface{}{
			"type": eventType,
			"id":   fmt.Sprintf("evt_cli_%d", time.Now().Unix()),
			"data": map[string]interface{}{"source": "haggleclient"},
		}
		body, _ = json.Marshal(event)
	}

	req, err := http.NewRequest("POST", apiURL+"/ivy/callback", bytes.NewReader(body))
	if err != nil {
		fatal("Creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ivy-Signature", webhook.Sign(secret, body))

	if !quiet {
		printRequest("POST", "/ivy/callback", body)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		fatal("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if !quiet {
		printResponse(resp.StatusCode, respBody, time.Since(start))
	}

	if resp.StatusCode != http.StatusOK {
		fatal("Webhook rejected: HTTP %d", resp.StatusCode)
	}

	if quiet {
		fmt.Println("ok")
	} else {
		printSuccess("Webhook accepted")
	}
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func doRequest(method, path string, body interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	reqURL := apiURL + path
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Shop-Agent", agentHeader)

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return result, nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	if !verbose {
		lines := strings.Split(output, "\n")
		if len(lines) > 30 {
			lines = append(lines[:25], fmt.Sprintf("%s  %s(%d more lines, use -v for full output)%s", prefix, colorGray, len(lines)-25, colorReset))
			output = strings.Join(lines, "\n")
		}
	}
	fmt.Println(output)
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Printf("%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
