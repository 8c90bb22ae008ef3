/* main.go */

package main

import (
	"github.com/CodeMonkeyCybersecurity/omboot/cmd"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/omboot/pkg/telemetry"
)

func main() {
	logger.InitFallback()

	if err := telemetry.Init("omboot"); err != nil {
		logger.L().Warn("Telemetry disabled: " + err.Error())
	}

	cmd.Execute()
}
