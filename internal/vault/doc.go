// Package vault reads secrets from the HashiCorp Vault KV v2 engine.
//
// Configuration values of the form
//
//	vault:<mount>/<path>#<key>
//
// are resolved once at load time:
//
//	client, err := vault.New(vault.Config{Address: addr, Token: token})
//	if err != nil {
//	    return err
//	}
//	secret, err := client.Resolve(ctx, "vault:secret/avamcp/jwt#signing_key")
//
// Token and AppRole authentication are supported. Secrets read during one
// load are cached per path so that several keys of the same secret cost a
// single request.
package vault
