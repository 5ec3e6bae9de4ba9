package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
)

// sendGraphQLRequest sends a GraphQL request to the server and decodes the
// "data" member of the response into out.
// The request can be a query or mutation, and it can optionally contain variables.
// The first error reported by the server is returned as an error.
func sendGraphQLRequest(query, token string, out interface{}, variables map[string]interface{}) error {
	reqBody, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, ServerURL+"/graphql", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var body struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return err
	}
	if len(body.Errors) > 0 {
		return errors.New(body.Errors[0].Message)
	}
	if len(body.Data) == 0 || string(body.Data) == "null" {
		return errors.New("response body does not contain 'data' field")
	}
	return json.Unmarshal(body.Data, out)
}

// Level returns the signed in user's level through the GraphQL endpoint.
func Level() (*growth.LevelStatus, error) {
	token, err := accessToken()
	if err != nil {
		return nil, err
	}
	query := `
		query level {
			level {
				totalXp
				currentLevel
				levelName
				nextLevel { level name minXp }
				xpToNextLevel
				progress
			}
		}
	`
	var data struct {
		Level growth.LevelStatus `json:"level"`
	}
	if err := sendGraphQLRequest(query, token, &data, nil); err != nil {
		return nil, err
	}
	return &data.Level, nil
}
