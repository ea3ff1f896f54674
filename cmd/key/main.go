package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"courier-driver/internal/cli"
)

func main() {
	var (
		userID = flag.String("user-id", "", "Id of the account (subject)")
		role   = flag.String("role", "driver", "Account role: driver | livreur | requester | supplier | admin")
		secret = flag.String("secret", "", "JWT HMAC secret (HS256)")
		ttl    = flag.Duration("ttl", 2*time.Hour, "Token lifetime")
	)
	flag.Parse()

	if *userID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: key --user-id=<id> --role=driver --secret='<secret>' [--ttl=2h]")
		os.Exit(2)
	}

	token, claims, err := cli.GenerateUserToken(*secret, *userID, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	cli.PrintToken(os.Stdout, token, claims)
}
