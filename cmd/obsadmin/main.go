package main

import (
	"github.com/obstaclehub/records-api/internal/admincli"
)

func main() {
	admincli.Execute()
}
