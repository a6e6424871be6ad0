// Command sitectl manages the site's database: schema migrations and
// translation content imports.
package main

import (
	"os"

	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		os.Exit(1)
	}
}
