package orders

// Order represents a USB burn order received from the remote service.
// Read-only once received.
type Order struct {
	OrderID       string   `json:"order_id"`
	OrderNumber   string   `json:"order_number"`
	CustomerPhone string   `json:"customer_phone"`
	CustomerName  string   `json:"customer_name"`
	ProductType   string   `json:"product_type"` // "music", "videos", "movies"
	Capacity      string   `json:"capacity"`     // free-text size class, e.g. "16GB"
	Genres        []string `json:"genres"`
	Artists       []string `json:"artists"`
	Videos        []string `json:"videos"`
	Movies        []string `json:"movies"`
	CreatedAt     string   `json:"created_at"`
	Status        string   `json:"status"`
}

type pendingOrdersResponse struct {
	Orders *[]Order `json:"orders"`
}

type ackResponse struct {
	Success *bool `json:"success"`
}

type errorReport struct {
	ErrorMessage string `json:"error_message"`
}
