package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aussiebroadwan/passport/internal/passport/app"
	"github.com/aussiebroadwan/passport/pkg/cryptox"
)

func main() {
	// `passport keygen` prints a fresh secret key and exits, for initial
	// provisioning of PASSPORT_SECRET_KEY.
	if len(os.Args) > 1 && os.Args[1] == "keygen" {
		key, err := cryptox.GenerateKey()
		if err != nil {
			log.Fatalf("failed to generate key: %v", err)
		}
		fmt.Println(key)
		return
	}

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
