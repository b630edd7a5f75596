// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package omics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/omics"
	"github.com/aws/aws-sdk-go-v2/service/omics/types"
	"github.com/aws/smithy-go"
	"github.com/xmidt-org/setsync/awsconfig"
	"github.com/xmidt-org/setsync/enrich"
	"github.com/xmidt-org/setsync/model"
	"go.uber.org/zap"
)

const (
	sequenceStoreType  = "sequence_store"
	defaultMaxRetries  = 10
	sequenceStoreToken = "sequenceStore"
	readSetToken       = "readSet"
)

// file slots of a read set, in the order they are reported
const (
	source1Slot = "source1"
	source2Slot = "source2"
	indexSlot   = "index"
)

var errMissingIdentifiers = errors.New("notification carries neither read set and sequence store ids nor a parsable arn")

// Client captures the methods of interest from the HealthOmics API.
type Client interface {
	GetReadSetMetadata(context.Context, *omics.GetReadSetMetadataInput, ...func(*omics.Options)) (*omics.GetReadSetMetadataOutput, error)
	ListTagsForResource(context.Context, *omics.ListTagsForResourceInput, ...func(*omics.Options)) (*omics.ListTagsForResourceOutput, error)
	GetSequenceStore(context.Context, *omics.GetSequenceStoreInput, ...func(*omics.Options)) (*omics.GetSequenceStoreOutput, error)
	ListReadSets(context.Context, *omics.ListReadSetsInput, ...func(*omics.Options)) (*omics.ListReadSetsOutput, error)
}

type Config struct {
	awsconfig.Config `mapstructure:",squash"`
}

// NewClient builds a HealthOmics client. The same client serves the enricher and
// the backfill.
func NewClient(ctx context.Context, config Config) (Client, error) {
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultMaxRetries
	}
	awsCfg, err := awsconfig.Load(ctx, config.Config)
	if err != nil {
		return nil, err
	}
	return omics.NewFromConfig(awsCfg, func(o *omics.Options) {
		o.BaseEndpoint = config.BaseEndpoint()
	}), nil
}

// Enricher looks up read set metadata, tags and sequence store details.
type Enricher struct {
	c      Client
	logger *zap.Logger

	lock   sync.Mutex
	stores map[string]*model.StoreInfo
}

func NewEnricher(c Client, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		c:      c,
		logger: logger,
		stores: map[string]*model.StoreInfo{},
	}
}

func (e *Enricher) Enrich(ctx context.Context, n model.Notification) (model.Metadata, error) {
	readSetID, storeID := Identifiers(n)
	if readSetID == "" || storeID == "" {
		return model.Metadata{}, enrich.Permanent(n.ResourceID, errMissingIdentifiers)
	}

	out, err := e.c.GetReadSetMetadata(ctx, &omics.GetReadSetMetadataInput{
		Id:              aws.String(readSetID),
		SequenceStoreId: aws.String(storeID),
	})
	if err != nil {
		return model.Metadata{}, classify(n.ResourceID, err)
	}

	md := model.Metadata{
		SetID:          aws.ToString(out.Id),
		SetType:        string(out.FileType),
		Name:           aws.ToString(out.Name),
		Description:    aws.ToString(out.Description),
		ReferenceARN:   aws.ToString(out.ReferenceArn),
		SampleID:       aws.ToString(out.SampleId),
		SubjectID:      aws.ToString(out.SubjectId),
		UpstreamStatus: string(out.Status),
		CreationTime:   out.CreationTime,
		Files:          files(out.Files, out.Etag),
	}

	setARN := aws.ToString(out.Arn)
	if setARN == "" {
		setARN = n.ResourceID
	}
	tags, err := e.c.ListTagsForResource(ctx, &omics.ListTagsForResourceInput{ResourceArn: aws.String(setARN)})
	if err != nil {
		return model.Metadata{}, classify(n.ResourceID, err)
	}
	if len(tags.Tags) > 0 {
		md.Tags = tags.Tags
	}

	md.Store, err = e.storeInfo(ctx, n.ResourceID, storeID)
	if err != nil {
		return model.Metadata{}, err
	}
	return md, nil
}

// storeInfo fetches the sequence store once; stores do not change after creation.
func (e *Enricher) storeInfo(ctx context.Context, resourceID, storeID string) (*model.StoreInfo, error) {
	e.lock.Lock()
	cached, ok := e.stores[storeID]
	e.lock.Unlock()
	if ok {
		info := *cached
		return &info, nil
	}

	out, err := e.c.GetSequenceStore(ctx, &omics.GetSequenceStoreInput{Id: aws.String(storeID)})
	if err != nil {
		return nil, classify(resourceID, err)
	}
	info := &model.StoreInfo{
		ARN:  aws.ToString(out.Arn),
		ID:   aws.ToString(out.Id),
		Type: sequenceStoreType,
		Name: aws.ToString(out.Name),
	}
	if out.S3Access != nil {
		info.AccessPointARN = aws.ToString(out.S3Access.S3AccessPointArn)
		info.URI = aws.ToString(out.S3Access.S3Uri)
	}

	e.lock.Lock()
	e.stores[storeID] = info
	e.lock.Unlock()
	e.logger.Debug("cached sequence store", zap.String("storeID", storeID))

	result := *info
	return &result, nil
}

func files(rf *types.ReadSetFiles, etag *types.ETag) []model.File {
	if rf == nil {
		return nil
	}
	var result []model.File
	add := func(slot string, fi *types.FileInformation, tag *string) {
		if fi == nil {
			return
		}
		f := model.File{
			FileType:      slot,
			ETag:          aws.ToString(tag),
			ContentLength: aws.ToInt64(fi.ContentLength),
			PartSize:      aws.ToInt64(fi.PartSize),
			TotalParts:    aws.ToInt32(fi.TotalParts),
		}
		if fi.S3Access != nil {
			f.Path = aws.ToString(fi.S3Access.S3Uri)
		}
		result = append(result, f)
	}

	var source1Tag, source2Tag *string
	if etag != nil {
		source1Tag, source2Tag = etag.Source1, etag.Source2
	}
	add(source1Slot, rf.Source1, source1Tag)
	add(source2Slot, rf.Source2, source2Tag)
	add(indexSlot, rf.Index, nil)
	return result
}

// Identifiers returns the read set and sequence store ids of n, falling back to
// the ids embedded in its ARN
// (arn:aws:omics:<region>:<account>:sequenceStore/<store>/readSet/<set>). Ids
// that can be found neither way are returned empty.
func Identifiers(n model.Notification) (readSetID, storeID string) {
	readSetID, storeID = n.ReadSetID, n.SequenceStoreID
	if readSetID != "" && storeID != "" {
		return
	}

	parsed, err := arn.Parse(n.ResourceID)
	if err != nil {
		return
	}
	parts := strings.Split(parsed.Resource, "/")
	for i := 0; i+1 < len(parts); i++ {
		switch parts[i] {
		case sequenceStoreToken:
			if storeID == "" {
				storeID = parts[i+1]
			}
		case readSetToken:
			if readSetID == "" {
				readSetID = parts[i+1]
			}
		}
	}
	return
}

func classify(resourceID string, err error) error {
	var (
		notFound   *types.ResourceNotFoundException
		throttling *types.ThrottlingException
		internal   *types.InternalServerException
		timeout    *types.RequestTimeoutException
		quota      *types.ServiceQuotaExceededException
		apiErr     smithy.APIError
	)
	switch {
	case errors.As(err, &notFound):
		return enrich.NotFound(resourceID, err)
	case errors.As(err, &throttling), errors.As(err, &internal), errors.As(err, &timeout), errors.As(err, &quota):
		return enrich.Transient(resourceID, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return enrich.Transient(resourceID, err)
	case errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer:
		return enrich.Transient(resourceID, err)
	case !errors.As(err, &apiErr):
		// no API response at all: connection level failure
		return enrich.Transient(resourceID, err)
	}
	return enrich.Permanent(resourceID, err)
}
