package utils

import (
	"fmt"
	"net/url"
	"os"
)

// GetDeploymentUrl returns the API URL of a deployment. BASE_URL, when set,
// replaces the local server address.
func GetDeploymentUrl(serverPort int, deploymentID uint64) (string, error) {
	path := fmt.Sprintf("/api/deployments/%d", deploymentID)

	if baseUrl := os.Getenv("BASE_URL"); baseUrl != "" {
		parsedUrl, err := url.Parse(baseUrl)
		if err != nil {
			return "", fmt.Errorf("invalid BASE_URL env var: %w", err)
		}
		if parsedUrl.Scheme == "" || parsedUrl.Host == "" {
			return "", fmt.Errorf("invalid BASE_URL env var: %q has no scheme or host", baseUrl)
		}
		parsedUrl.Path = path
		return parsedUrl.String(), nil
	}

	return fmt.Sprintf("http://localhost:%d%s", serverPort, path), nil
}
