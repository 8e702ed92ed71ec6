// Package ddbstore implements the short id search index on a DynamoDB table,
// paging with ExclusiveStartKey over the table sort key.
package ddbstore
