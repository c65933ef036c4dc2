package shared

// Permissions declared for RBAC, grouped by module.
const (
	// Catalog permissions
	PermArticleView   = "catalog.article.view"
	PermArticleCreate = "catalog.article.create"
	PermArticleEdit   = "catalog.article.edit"
	PermArticleDelete = "catalog.article.delete"

	// Groupage/Inventory permissions
	PermGroupageView   = "groupage.view"
	PermGroupageCreate = "groupage.create"
	PermGroupageEdit   = "groupage.edit"
	PermGroupageDelete = "groupage.delete"
	PermPurchaseCreate = "groupage.purchase.create"

	// Client permissions
	PermClientView   = "clients.view"
	PermClientCreate = "clients.create"
	PermClientEdit   = "clients.edit"
	PermClientDelete = "clients.delete"

	// Order permissions
	PermOrderView     = "sales.order.view"
	PermOrderCreate   = "sales.order.create"
	PermOrderValidate = "sales.order.validate"
	PermOrderSettle   = "sales.order.settle"

	// Delivery permissions
	PermDeliveryView    = "delivery.view"
	PermDeliveryProcess = "delivery.process"

	// Finance permissions
	PermFinanceView = "finance.view"
)

// CatalogScopes lists all catalog permissions.
func CatalogScopes() []string {
	return []string{PermArticleView, PermArticleCreate, PermArticleEdit, PermArticleDelete}
}

// GroupageScopes lists all groupage permissions.
func GroupageScopes() []string {
	return []string{PermGroupageView, PermGroupageCreate, PermGroupageEdit, PermGroupageDelete, PermPurchaseCreate}
}

// ClientScopes lists all client registry permissions.
func ClientScopes() []string {
	return []string{PermClientView, PermClientCreate, PermClientEdit, PermClientDelete}
}

// OrderScopes lists all order workflow permissions.
func OrderScopes() []string {
	return []string{PermOrderView, PermOrderCreate, PermOrderValidate, PermOrderSettle}
}

// DeliveryScopes lists all delivery workflow permissions.
func DeliveryScopes() []string {
	return []string{PermDeliveryView, PermDeliveryProcess}
}

// FinanceScopes lists the finance read-model permissions.
func FinanceScopes() []string {
	return []string{PermFinanceView}
}
