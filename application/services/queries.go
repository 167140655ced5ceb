package services

import "github.com/mrsidrdx/context-graph-ai/domain/graph"

// depthOneQuery collects the user, the five strongest interests, up to ten
// documents touched in the last 30 days and active projects. No edges.
const depthOneQuery = `
MATCH (u:User {id: $userId})
OPTIONAL MATCH (u)-[r1:INTERESTED_IN]->(t:Topic)
WITH u, t, r1.strength as topic_strength
ORDER BY topic_strength DESC
LIMIT 5

WITH u, collect(DISTINCT {
  id: t.id,
  labels: labels(t),
  properties: properties(t)
}) as topics

OPTIONAL MATCH (u)-[:OWNS]->(d:Document)
WHERE d.updated_at > datetime() - duration('P30D')
WITH u, topics, collect(DISTINCT {
  id: d.id,
  labels: labels(d),
  properties: properties(d)
})[..10] as documents

OPTIONAL MATCH (u)-[wp:WORKING_ON]->(p:Project)
WHERE p.status = 'active'
WITH u, topics, documents, collect(DISTINCT {
  id: p.id,
  labels: labels(p),
  properties: properties(p),
  role: wp.role
}) as projects

RETURN {
  nodes: [{id: u.id, labels: labels(u), properties: properties(u)}] + topics + documents + projects,
  relationships: []
} as result
`

// depthTwoQuery extends depthOneQuery with the topics the documents are
// tagged with and the concepts the projects use, plus those edges.
const depthTwoQuery = `
MATCH (u:User {id: $userId})
OPTIONAL MATCH (u)-[r1:INTERESTED_IN]->(t:Topic)
WITH u, t, r1.strength as topic_strength
ORDER BY topic_strength DESC
LIMIT 5

WITH u, collect(DISTINCT {
  id: t.id,
  labels: labels(t),
  properties: properties(t)
}) as topics

OPTIONAL MATCH (u)-[:OWNS]->(d:Document)
WHERE d.updated_at > datetime() - duration('P30D')
WITH u, topics, collect(DISTINCT {
  id: d.id,
  labels: labels(d),
  properties: properties(d)
})[..10] as documents

OPTIONAL MATCH (u)-[wp:WORKING_ON]->(p:Project)
WHERE p.status = 'active'
WITH u, topics, documents, collect(DISTINCT {
  id: p.id,
  labels: labels(p),
  properties: properties(p),
  role: wp.role
}) as projects

WITH u, topics, documents, projects
OPTIONAL MATCH (doc:Document)-[tw:TAGGED_WITH]->(t2:Topic)
WHERE doc.id IN [d.id | d IN documents]
WITH u, topics, documents, projects, doc,
     collect(DISTINCT {
       id: t2.id,
       labels: labels(t2),
       properties: properties(t2)
     }) as allRelatedTopics,
     collect(DISTINCT {
       startNodeId: doc.id,
       endNodeId: t2.id,
       type: 'TAGGED_WITH',
       properties: properties(tw)
     }) as tagRelationships

WITH u, topics, documents, projects,
     collect(DISTINCT allRelatedTopics) as relatedTopicsCollection,
     collect(DISTINCT tagRelationships) as tagRelationshipsCollection

OPTIONAL MATCH (proj:Project)-[uses:USES]->(c:Concept)
WHERE proj.id IN [p.id | p IN projects]
WITH u, topics, documents, projects, relatedTopicsCollection, tagRelationshipsCollection,
     collect(DISTINCT {
       id: c.id,
       labels: labels(c),
       properties: properties(c)
     }) as concepts,
     collect(DISTINCT {
       startNodeId: proj.id,
       endNodeId: c.id,
       type: 'USES',
       properties: properties(uses)
     }) as usesRelationships

WITH u, topics, documents, projects,
     [item IN relatedTopicsCollection WHERE item IS NOT NULL | item][0] as flatRelatedTopics,
     [item IN tagRelationshipsCollection WHERE item IS NOT NULL | item][0] as flatTagRelationships,
     concepts, usesRelationships

RETURN {
  nodes: [{id: u.id, labels: labels(u), properties: properties(u)}] + topics + documents + projects + coalesce(flatRelatedTopics, []) + concepts,
  relationships: coalesce(flatTagRelationships, []) + usesRelationships
} as result
`

// depthThreeQuery further adds the topics the concepts are part of and the
// topics related to the user's interests.
const depthThreeQuery = `
MATCH (u:User {id: $userId})
OPTIONAL MATCH (u)-[r1:INTERESTED_IN]->(t:Topic)
WITH u, t, r1.strength as topic_strength
ORDER BY topic_strength DESC
LIMIT 5

WITH u, collect(DISTINCT {
  id: t.id,
  labels: labels(t),
  properties: properties(t)
}) as topics

OPTIONAL MATCH (u)-[:OWNS]->(d:Document)
WHERE d.updated_at > datetime() - duration('P30D')
WITH u, topics, collect(DISTINCT {
  id: d.id,
  labels: labels(d),
  properties: properties(d)
})[..10] as documents

OPTIONAL MATCH (u)-[wp:WORKING_ON]->(p:Project)
WHERE p.status = 'active'
WITH u, topics, documents, collect(DISTINCT {
  id: p.id,
  labels: labels(p),
  properties: properties(p),
  role: wp.role
}) as projects

WITH u, topics, documents, projects
OPTIONAL MATCH (doc:Document)-[tw:TAGGED_WITH]->(t2:Topic)
WHERE doc.id IN [d.id | d IN documents]
WITH u, topics, documents, projects,
     collect(DISTINCT {
       id: t2.id,
       labels: labels(t2),
       properties: properties(t2)
     }) as relatedTopics,
     collect(DISTINCT {
       startNodeId: doc.id,
       endNodeId: t2.id,
       type: 'TAGGED_WITH',
       properties: properties(tw)
     }) as tagRelationships

OPTIONAL MATCH (proj:Project)-[uses:USES]->(c:Concept)
WHERE proj.id IN [p.id | p IN projects]
WITH u, topics, documents, projects, relatedTopics, tagRelationships,
     collect(DISTINCT {
       id: c.id,
       labels: labels(c),
       properties: properties(c)
     }) as concepts,
     collect(DISTINCT {
       startNodeId: proj.id,
       endNodeId: c.id,
       type: 'USES',
       properties: properties(uses)
     }) as usesRelationships

OPTIONAL MATCH (con:Concept)-[po:PART_OF]->(t3:Topic)
WHERE con.id IN [c.id | c IN concepts]
WITH u, topics, documents, projects, relatedTopics, concepts, tagRelationships, usesRelationships,
     collect(DISTINCT {
       id: t3.id,
       labels: labels(t3),
       properties: properties(t3)
     }) as conceptTopics,
     collect(DISTINCT {
       startNodeId: con.id,
       endNodeId: t3.id,
       type: 'PART_OF',
       properties: properties(po)
     }) as partOfRelationships

OPTIONAL MATCH (top:Topic)-[rt:RELATED_TO]->(t4:Topic)
WHERE top.id IN [t.id | t IN topics]
WITH u, topics, documents, projects, relatedTopics, concepts, conceptTopics, tagRelationships, usesRelationships, partOfRelationships,
     collect(DISTINCT {
       id: t4.id,
       labels: labels(t4),
       properties: properties(t4)
     }) as linkedTopics,
     collect(DISTINCT {
       startNodeId: top.id,
       endNodeId: t4.id,
       type: 'RELATED_TO',
       properties: properties(rt)
     }) as relatedToRelationships

RETURN {
  nodes: [{id: u.id, labels: labels(u), properties: properties(u)}] + topics + documents + projects + relatedTopics + concepts + conceptTopics + linkedTopics,
  relationships: tagRelationships + usesRelationships + partOfRelationships + relatedToRelationships
} as result
`

// contextQuery returns the traversal for depth. Unsupported depths use the
// deepest traversal.
func contextQuery(depth graph.Depth) string {
	switch depth {
	case graph.DepthShallow:
		return depthOneQuery
	case graph.DepthDefault:
		return depthTwoQuery
	default:
		return depthThreeQuery
	}
}
