// Package minio serves docdb blobs from MinIO or any S3-compatible server
// (Ceph, SeaweedFS, Garage) through the MinIO client, without pulling in the
// AWS SDK.
//
//	client, err := miniogo.New("localhost:9000", &miniogo.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//	    return err
//	}
//
//	store := minio.NewStore(client, "kb", "docs/", func(o *minio.Options) {
//	    o.MaxObjectSize = 16 << 20
//	})
//	svc := docdb.New(store)
//	err = svc.LoadFrom(ctx, store, "index.ddb")
//
// One store can hold both the index blob and the documents it points at.
package minio
