package entities

// Kernel methods.
const (
	MethodOfferPermission   = "wallet_offerOnchainPermission"
	MethodRequestPermission = "wallet_requestOnchainPermission"
)

// Provider methods.
const (
	MethodGrantAttenuatedPermission = "permissionProvider_grantAttenuatedPermission"
	MethodListPermissionTypes       = "permissionProvider_listPermissionTypes"
	MethodValidatePermission        = "permissionProvider_validatePermission"
	MethodRevokePermission          = "permissionProvider_revokePermission"
	MethodRenewPermission           = "permissionProvider_renewPermission"
)

// SelectionField is the input name of the kernel's selection dialog.
const SelectionField = "selected-permission"

// AccountMethods are the classic per-account wallet operations. Providers
// that do not implement them answer NOT_FOUND.
var AccountMethods = []string{
	"eth_sendBatchTransaction",
	"eth_accounts",
	"eth_sendTransaction",
	"eth_personalSign",
	"eth_signTypedData",
	"eth_signTypedData_v1",
	"eth_signTypedData_v3",
	"eth_signTypedData_v4",
}
