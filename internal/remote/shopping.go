package remote

import (
	"context"
	"net/http"
	"net/url"
)

const shoppingEndpoint = "/shopping-list"

// ShoppingItem is the remote representation of a shopping list entry.
// UpdatedAt is epoch milliseconds.
type ShoppingItem struct {
	ID          string `json:"id,omitempty"`
	ItemName    string `json:"itemName"`
	Quantity    int    `json:"quantity"`
	IsPurchased bool   `json:"isPurchased"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// ListShoppingItems fetches the complete remote list.
func (c *Client) ListShoppingItems(ctx context.Context) ([]ShoppingItem, error) {
	var items []ShoppingItem
	if err := c.doJSON(ctx, http.MethodGet, shoppingEndpoint, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateShoppingItem creates item remotely and returns the stored version.
// When the remote replies without a body the input is returned unchanged.
func (c *Client) CreateShoppingItem(ctx context.Context, item ShoppingItem) (*ShoppingItem, error) {
	out := item
	if err := c.doJSON(ctx, http.MethodPost, shoppingEndpoint, item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateShoppingItem(ctx context.Context, item ShoppingItem) (*ShoppingItem, error) {
	out := item
	if err := c.doJSON(ctx, http.MethodPut, ShoppingItemEndpoint(item.ID), item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteShoppingItem(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, ShoppingItemEndpoint(id), nil, nil)
}

// ShoppingItemEndpoint is the path of a single remote shopping list entry.
func ShoppingItemEndpoint(id string) string {
	return shoppingEndpoint + "/" + url.PathEscape(id)
}
