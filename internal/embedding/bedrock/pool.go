package bedrock

import (
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

var (
	sharedRuntimesMu sync.Mutex
	sharedRuntimes   = make(map[string]*bedrockruntime.Client)
)

func runtimePoolKey(cfg aws.Config) string {
	credPtr := ""
	if cfg.Credentials != nil {
		credPtr = fmt.Sprintf("%p", cfg.Credentials)
	}
	return fmt.Sprintf("%s|%s", cfg.Region, credPtr)
}

// SharedRuntime returns a process-wide Bedrock runtime client per region and
// credential source, so the embedder and the chat client share connections.
func SharedRuntime(cfg aws.Config) *bedrockruntime.Client {
	key := runtimePoolKey(cfg)

	sharedRuntimesMu.Lock()
	defer sharedRuntimesMu.Unlock()

	if client, ok := sharedRuntimes[key]; ok {
		return client
	}

	client := bedrockruntime.NewFromConfig(cfg)
	sharedRuntimes[key] = client
	return client
}
