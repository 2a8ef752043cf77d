package ga4

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mkoziy/ga4mirror/internal/models"
)

// ListAccounts returns every account visible to the credentials.
func (c *Client) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var out []models.Account
	token := ""
	for {
		var resp accountsResponse
		err := c.do(ctx, call{
			api:      apiAdmin,
			endpoint: "list_accounts",
			method:   http.MethodGet,
			url:      fmt.Sprintf("%s/accounts?%s", c.adminBaseURL, pageQuery(c.pageSize, token, nil)),
		}, &resp)
		if err != nil {
			return nil, err
		}
		for _, a := range resp.Accounts {
			if a.Deleted {
				continue
			}
			out = append(out, mapAccount(a))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

// ListProperties returns the properties under an account, given as
// "accounts/123" or "123".
func (c *Client) ListProperties(ctx context.Context, accountID string) ([]models.RemoteProperty, error) {
	if !strings.HasPrefix(accountID, "accounts/") {
		accountID = "accounts/" + accountID
	}
	filter := url.Values{"filter": {"parent:" + accountID}}

	var out []models.RemoteProperty
	token := ""
	for {
		var resp propertiesResponse
		err := c.do(ctx, call{
			api:      apiAdmin,
			endpoint: "list_properties",
			method:   http.MethodGet,
			url:      fmt.Sprintf("%s/properties?%s", c.adminBaseURL, pageQuery(c.pageSize, token, filter)),
		}, &resp)
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Properties {
			if p.DeleteTime != "" {
				continue
			}
			out = append(out, mapProperty(p))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

// GetProperty fetches one property. A missing property yields an error
// matching models.ErrRemoteNotFound.
func (c *Client) GetProperty(ctx context.Context, propertyID string) (*models.RemoteProperty, error) {
	var resp property
	err := c.do(ctx, call{
		api:      apiAdmin,
		endpoint: "get_property",
		method:   http.MethodGet,
		url:      fmt.Sprintf("%s/%s", c.adminBaseURL, models.PropertyResource(propertyID)),
	}, &resp)
	if err != nil {
		return nil, err
	}
	p := mapProperty(resp)
	return &p, nil
}

// ListDataStreams returns every data stream of a property.
func (c *Client) ListDataStreams(ctx context.Context, propertyID string) ([]models.RemoteDataStream, error) {
	resource := models.PropertyResource(propertyID)

	var out []models.RemoteDataStream
	token := ""
	for {
		var resp dataStreamsResponse
		err := c.do(ctx, call{
			api:      apiAdmin,
			endpoint: "list_data_streams",
			method:   http.MethodGet,
			url:      fmt.Sprintf("%s/%s/dataStreams?%s", c.adminBaseURL, resource, pageQuery(c.pageSize, token, nil)),
		}, &resp)
		if err != nil {
			return nil, err
		}
		for _, ds := range resp.DataStreams {
			out = append(out, mapDataStream(resource, ds))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}
