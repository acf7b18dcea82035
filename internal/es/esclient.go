package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/config"
	"github.com/chriskampolis/cf7-restaurant-backend/internal/models"
)

func NewClient(cfg *config.Config) (*elasticsearch.Client, error) {
	log.Printf("Connecting to Elasticsearch at: %s", cfg.ES_URL)

	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.ES_URL},
		Username:  cfg.ES_USER,
		Password:  cfg.ES_PASSWORD,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("es: cannot create client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("es: info request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es: error response: %s (%s)", res.Status(), body)
	}

	log.Println("Successfully connected to Elasticsearch")
	return client, nil
}

// IndexMenuItem upserts the menu item document keyed by its id.
func IndexMenuItem(ctx context.Context, client *elasticsearch.Client, index string, item *models.MenuItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	res, err := client.Index(
		index,
		bytes.NewReader(data),
		client.Index.WithContext(ctx),
		client.Index.WithDocumentID(strconv.Itoa(int(item.ID))),
	)
	if err != nil {
		return fmt.Errorf("es: index failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("es: index error: %s", res.Status())
	}
	return nil
}

func RemoveMenuItem(ctx context.Context, client *elasticsearch.Client, index string, id uint) error {
	res, err := client.Delete(
		index,
		strconv.Itoa(int(id)),
		client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("es: delete failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("es: delete error: %s", res.Status())
	}
	return nil
}
