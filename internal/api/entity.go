package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tutanota-cli/client-go/internal/typemodel"
	"github.com/tutanota-cli/client-go/internal/wire"
)

// Range sentinels: the lowest and highest possible generated ids.
const (
	GeneratedMinID = "------------"
	GeneratedMaxID = "zzzzzzzzzzzz"
)

// EntityID addresses an entity: an element id alone, or a
// (listId, elementId) tuple for list-typed entities.
type EntityID struct {
	ListID    string
	ElementID string
}

// ElementID addresses a standalone entity.
func ElementID(id string) EntityID {
	return EntityID{ElementID: id}
}

// TupleID addresses a list entity.
func TupleID(listID, elementID string) EntityID {
	return EntityID{ListID: listID, ElementID: elementID}
}

func (id EntityID) String() string {
	if id.ListID == "" {
		return id.ElementID
	}
	return id.ListID + "/" + id.ElementID
}

// typePath is the REST path prefix of a type: /rest/{app}/{lowername}.
func typePath(tm *typemodel.Type) string {
	return "/rest/" + tm.App + "/" + strings.ToLower(tm.Name)
}

// LoadEntity fetches one entity of the given type and maps it to a wire
// instance. The type's model version travels as the "v" header.
func (c *Client) LoadEntity(ctx context.Context, tm *typemodel.Type, id EntityID) (wire.Instance, error) {
	path := typePath(tm) + "/" + url.PathEscape(id.ElementID)
	if id.ListID != "" {
		path = typePath(tm) + "/" + url.PathEscape(id.ListID) + "/" + url.PathEscape(id.ElementID)
	}

	var inst wire.Instance
	if err := c.do(ctx, http.MethodGet, path, tm.Version, nil, nil, &inst); err != nil {
		return nil, fmt.Errorf("load %s %s: %w", tm.Name, id, err)
	}
	return inst, nil
}

// LoadRange fetches a slice of a list-typed entity's list.
func (c *Client) LoadRange(ctx context.Context, tm *typemodel.Type, listID, start string, count int, reverse bool) ([]wire.Instance, error) {
	path := typePath(tm) + "/" + url.PathEscape(listID)
	query := url.Values{
		"start":   {start},
		"count":   {strconv.Itoa(count)},
		"reverse": {strconv.FormatBool(reverse)},
	}

	var instances []wire.Instance
	if err := c.do(ctx, http.MethodGet, path, tm.Version, query, nil, &instances); err != nil {
		return nil, fmt.Errorf("load range %s %s: %w", tm.Name, listID, err)
	}
	return instances, nil
}

// GetService calls a service endpoint with GET; the body travels as the
// _body query parameter.
func (c *Client) GetService(ctx context.Context, app, service, modelVersion string, body any) (wire.Instance, error) {
	var inst wire.Instance
	path := "/rest/" + app + "/" + service
	if err := c.do(ctx, http.MethodGet, path, modelVersion, nil, body, &inst); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", app, service, err)
	}
	return inst, nil
}

// PostService calls a service endpoint with a JSON body.
func (c *Client) PostService(ctx context.Context, app, service, modelVersion string, body any) (wire.Instance, error) {
	var inst wire.Instance
	path := "/rest/" + app + "/" + service
	if err := c.do(ctx, http.MethodPost, path, modelVersion, nil, body, &inst); err != nil {
		return nil, fmt.Errorf("post %s/%s: %w", app, service, err)
	}
	return inst, nil
}
