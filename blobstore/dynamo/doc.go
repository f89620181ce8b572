// Package dynamo provides a blobstore.Store that reads documents from a
// DynamoDB table.
//
// Each document is one item. The partition key holds the reference and a
// second attribute holds the body, either as a string (S) or binary (B).
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name docdb-content \
//	  --attribute-definitions AttributeName=ref,AttributeType=S \
//	  --key-schema AttributeName=ref,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
//
// Items are limited to 400KB, so this store suits chunked document corpora
// rather than large files.
package dynamo
