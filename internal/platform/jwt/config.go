package jwtmw

// EnvKeyJWTSecret はトークン署名用シークレットの環境変数名です。
const EnvKeyJWTSecret = "JWT_SECRET"

const (
	// ContextOperatorID はオペレーターIDを格納するgin.Contextのキーです。
	ContextOperatorID = "operatorID"
	// ContextTenantID はテナントIDを格納するgin.Contextのキーです。
	ContextTenantID = "tenantID"

	claimTenantID = "tenant_id"

	// queryAccessToken はWebSocket接続用のトークンクエリパラメータです。
	// ブラウザのWebSocket APIはAuthorizationヘッダーを付与できないため、Upgradeリクエストでのみ受け付けます。
	queryAccessToken = "access_token"
)
