package frontend

import (
	"os"

	"github.com/Rodvdev/gainz-factory-sub003/frontend/client"
	"github.com/Rodvdev/gainz-factory-sub003/frontend/cmd"
	"github.com/joho/godotenv"
)

// DefaultServerURL is used when neither the flag nor SERVER_URL names a server.
const DefaultServerURL = "http://localhost:8080"

// RunFrontend starts the interactive shell against serverURL. An empty
// serverURL falls back to SERVER_URL from frontend/.env or the environment.
func RunFrontend(serverURL string) {
	// A missing .env file is fine; the environment may hold the values.
	_ = godotenv.Load("frontend/.env")

	if serverURL == "" {
		serverURL = os.Getenv("SERVER_URL")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}

	client.InitClient(serverURL)
	cmd.InitShell()
	cmd.Execute()
}
