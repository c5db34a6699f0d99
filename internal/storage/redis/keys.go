package redis

import (
	"fmt"

	"github.com/mcoot/smartkiosk/internal/model"
)

// Key prefix for all kiosk data
const keyPrefix = "kiosk"

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// contactIndexKey returns the Redis key for the contact -> user_id index
func contactIndexKey(contact string) string {
	return fmt.Sprintf("%s:idx:contact:%s", keyPrefix, contact)
}

// usersIndexKey returns the Redis key for the SET of all user ids
func usersIndexKey() string {
	return fmt.Sprintf("%s:idx:users", keyPrefix)
}

// productKey returns the Redis key for a Product
func productKey(id model.ProductID) string {
	return fmt.Sprintf("%s:product:%s", keyPrefix, id)
}

// productsIndexKey returns the Redis key for the SET of all product ids
func productsIndexKey() string {
	return fmt.Sprintf("%s:idx:products", keyPrefix)
}

// transactionKey returns the Redis key for a Transaction
func transactionKey(id model.TransactionID) string {
	return fmt.Sprintf("%s:transaction:%s", keyPrefix, id)
}

// userTransactionsIndexKey returns the Redis key for the ZSET of a user's
// transactions scored by creation time
func userTransactionsIndexKey(userID model.UserID) string {
	return fmt.Sprintf("%s:idx:user_transactions:%s", keyPrefix, userID)
}
