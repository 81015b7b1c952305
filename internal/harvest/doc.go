// Package harvest walks an OJS-style journal archive and persists issue and
// article metadata together with each article's downloadable artifact.
//
// The pipeline is strictly sequential:
//
//	ArchiveWalker -> IssueCrawler -> ArticleCrawler -> Resolver
//
// The RecordStore is consulted before an article is crawled and appended to
// afterwards. Failures are contained at the level where they occur and are
// recorded as a Status value instead of aborting the run.
package harvest
