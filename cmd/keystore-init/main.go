package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/perpdash/perpdash/pkg/secretstore"
)

// 把钱包私钥导入 badger 密钥库，之后 server 和 dash 可以只读打开。
// 私钥通过环境变量传入，避免出现在 shell 历史里。
func main() {
	var (
		dbPath    = flag.String("keystore", getenv("PERPDASH_KEYSTORE_PATH", "data/keystore"), "badger keystore path")
		secretKey = flag.String("secret-key", getenv("PERPDASH_SECRET_KEY", ""), "badger encryption key (32 bytes hex/base64)")
	)
	flag.Parse()

	raw := strings.TrimSpace(os.Getenv("PERPDASH_WALLET_KEY"))
	if raw == "" {
		fatal(fmt.Errorf("set PERPDASH_WALLET_KEY to the base58 wallet private key"))
	}
	// 先验证再入库，坏私钥直接拒收
	if _, err := solana.PrivateKeyFromBase58(raw); err != nil {
		fatal(fmt.Errorf("invalid wallet key: %w", err))
	}

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
		ReadOnly:      false,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	if err := ss.SetWalletKey(raw); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "钱包私钥已导入密钥库：%s\n", *dbPath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
